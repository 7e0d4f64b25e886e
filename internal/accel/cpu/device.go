// Package cpu is an emulated accelerator that runs kernels on host
// goroutines. Work-groups execute concurrently, work items inside a group
// run in order. Importing the package registers it as the accel.CPU backend.
package cpu

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/qrv0/spmv/internal/accel"
)

// DefaultMaxGroupSize is the group size reported when Config.MaxGroupSize
// is zero.
const DefaultMaxGroupSize = 256

func init() {
	accel.Register(accel.CPU, func(cfg accel.Config) (accel.Device, error) { return Open(cfg) })
}

type buffer struct {
	data  []byte
	flags accel.MemFlags
}

type Device struct {
	info    accel.Info
	workers int

	mu       sync.Mutex
	mem      map[accel.Ptr]*buffer
	next     accel.Ptr
	released bool
}

// Open returns the host device. Only index 0 exists.
func Open(cfg accel.Config) (*Device, error) {
	if cfg.Index != 0 {
		return nil, &accel.ResourceError{Op: "open cpu", Err: fmt.Errorf("%w: %d (1 device)", accel.ErrNoDevice, cfg.Index)}
	}
	group := cfg.MaxGroupSize
	if group <= 0 {
		group = DefaultMaxGroupSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Device{
		info: accel.Info{
			Name:         fmt.Sprintf("host emulated (%s/%s, %d workers)", runtime.GOOS, runtime.GOARCH, workers),
			Type:         accel.CPU,
			Index:        0,
			MaxGroupSize: group,
		},
		workers: workers,
		mem:     make(map[accel.Ptr]*buffer),
		next:    1,
	}, nil
}

func (d *Device) Info() accel.Info { return d.info }

func (d *Device) Allocate(size uint64, flags accel.MemFlags) (accel.Ptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return 0, &accel.ResourceError{Op: "allocate", Err: accel.ErrReleased}
	}
	p := d.next
	d.next++
	d.mem[p] = &buffer{data: make([]byte, size), flags: flags}
	return p, nil
}

func (d *Device) Free(p accel.Ptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.mem[p]; !ok {
		return &accel.ResourceError{Op: "free", Err: fmt.Errorf("%w: %d", accel.ErrUnknownBuffer, p)}
	}
	delete(d.mem, p)
	return nil
}

func (d *Device) lookup(p accel.Ptr) (*buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, accel.ErrReleased
	}
	b, ok := d.mem[p]
	if !ok {
		return nil, fmt.Errorf("%w: %d", accel.ErrUnknownBuffer, p)
	}
	return b, nil
}

func (d *Device) CopyH2D(dst accel.Ptr, src []byte) error {
	b, err := d.lookup(dst)
	if err != nil {
		return &accel.TransferError{Op: "h2d", Buffer: fmt.Sprint(dst), Err: err}
	}
	if len(src) > len(b.data) {
		return &accel.TransferError{Op: "h2d", Buffer: fmt.Sprint(dst), Err: fmt.Errorf("%d bytes into %d byte buffer", len(src), len(b.data))}
	}
	copy(b.data, src)
	return nil
}

func (d *Device) CopyD2H(dst []byte, src accel.Ptr) error {
	b, err := d.lookup(src)
	if err != nil {
		return &accel.TransferError{Op: "d2h", Buffer: fmt.Sprint(src), Err: err}
	}
	if len(dst) > len(b.data) {
		return &accel.TransferError{Op: "d2h", Buffer: fmt.Sprint(src), Err: fmt.Errorf("%d bytes from %d byte buffer", len(dst), len(b.data))}
	}
	copy(dst, b.data)
	return nil
}

func (d *Device) Build(name string) (accel.Kernel, error) {
	k, ok := kernels[name]
	if !ok {
		return nil, &accel.BuildError{
			Kernel: name,
			Log:    fmt.Sprintf("error: no kernel named '%s' in program (available: %s)", name, kernelNames()),
			Err:    fmt.Errorf("kernel not found"),
		}
	}
	return k, nil
}

// Launch runs the kernel over p and returns once every work item is done.
func (d *Device) Launch(k accel.Kernel, p accel.Partition, args ...accel.Arg) error {
	kern, ok := k.(*kernel)
	if !ok {
		return &accel.DispatchError{Kernel: k.Name(), Err: fmt.Errorf("kernel was not built by this device")}
	}
	if !p.Covers() || p.LocalSize > d.info.MaxGroupSize {
		return &accel.DispatchError{Kernel: kern.name, Err: fmt.Errorf("invalid partition %v (max group %d)", p, d.info.MaxGroupSize)}
	}
	item, err := kern.bind(d, args)
	if err != nil {
		return &accel.DispatchError{Kernel: kern.name, Err: err}
	}

	var g errgroup.Group
	g.SetLimit(d.workers)
	for grp := 0; grp < p.NumGroups; grp++ {
		base := grp * p.LocalSize
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("work-group %d: %v", base/p.LocalSize, r)
				}
			}()
			for l := 0; l < p.LocalSize; l++ {
				item(base + l)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &accel.DispatchError{Kernel: kern.name, Err: err}
	}
	return nil
}

// Finish is a no-op: every operation of this device completes before it
// returns.
func (d *Device) Finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return &accel.DispatchError{Kernel: "finish", Err: accel.ErrReleased}
	}
	return nil
}

func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	d.mem = nil
	return nil
}
