// Package offload stages a CSR matrix and its vectors on an accelerator,
// dispatches the row-parallel SpMV kernel and reads the result back. Every
// step is followed by a completion barrier; nothing overlaps.
package offload

import (
	"errors"
	"fmt"
	"time"

	"github.com/qrv0/spmv/internal/accel"
	"github.com/qrv0/spmv/internal/logging"
	"github.com/qrv0/spmv/internal/sparse"
)

// ErrShape is returned when the vectors do not match the matrix.
var ErrShape = errors.New("vector length does not match matrix")

// Phases holds the wall time of each pipeline stage.
type Phases struct {
	H2D    time.Duration
	Kernel time.Duration
	D2H    time.Duration
}

type Result struct {
	// Output is y + A*x as computed by the device, len NumRows.
	Output    []float32
	Partition accel.Partition
	Phases    Phases
	// Elapsed is the interval selected by the timing scope.
	Elapsed time.Duration
	// Staged is the number of bytes copied to the device.
	Staged uint64
}

type Orchestrator struct {
	dev    accel.Device
	kernel accel.Kernel
	opts   options
}

// New builds the SpMV kernel on dev. A build failure is returned as
// *accel.BuildError.
func New(dev accel.Device, optFns ...Option) (*Orchestrator, error) {
	o := options{kernel: "csr", scope: ScopeFull, logger: logging.Noop(), now: time.Now}
	for _, fn := range optFns {
		fn(&o)
	}
	k, err := dev.Build(o.kernel)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("kernel created", "kernel", k.Name(), "max_group_size", dev.Info().MaxGroupSize)
	return &Orchestrator{dev: dev, kernel: k, opts: o}, nil
}

func (o *Orchestrator) Device() accel.Info { return o.dev.Info() }

type staged struct {
	name  string
	ptr   accel.Ptr
	live  bool
	data  []byte
	flags accel.MemFlags
}

// Run computes y + A*x on the device. x and y are only read; the result is a
// new slice. Any failure aborts the run and is returned as one of the accel
// error types.
func (o *Orchestrator) Run(m *sparse.CSR, x, y []float32) (res *Result, err error) {
	if len(x) != m.NumCols || len(y) != m.NumRows {
		return nil, fmt.Errorf("%w: x=%d (cols %d) y=%d (rows %d)", ErrShape, len(x), m.NumCols, len(y), m.NumRows)
	}
	log := o.opts.logger
	now := o.opts.now

	bufs := []*staged{
		{name: "row_ptr", data: accel.Bytes(m.RowPtr), flags: accel.MemReadOnly},
		{name: "col_idx", data: accel.Bytes(m.ColIdx), flags: accel.MemReadOnly},
		{name: "values", data: accel.Bytes(m.Values), flags: accel.MemReadOnly},
		{name: "x", data: accel.Bytes(x), flags: accel.MemReadOnly},
		{name: "y", data: accel.Bytes(y), flags: accel.MemReadWrite},
	}
	for _, b := range bufs {
		p, aerr := o.dev.Allocate(uint64(len(b.data)), b.flags)
		if aerr != nil {
			err = aerr
			break
		}
		b.ptr, b.live = p, true
		log.Debug("buffer allocated", "buffer", b.name, "bytes", len(b.data))
	}
	defer func() {
		for _, b := range bufs {
			if !b.live {
				continue
			}
			if ferr := o.dev.Free(b.ptr); ferr != nil && err == nil {
				res, err = nil, ferr
			}
		}
	}()
	if err != nil {
		return nil, err
	}

	res = &Result{Partition: accel.PlanPartition(m.NumRows, o.dev.Info().MaxGroupSize)}
	start := now()

	for _, b := range bufs {
		t0 := now()
		if err := o.copyIn(b); err != nil {
			log.Stage("h2d "+b.name, uint64(len(b.data)), 0, err)
			return nil, err
		}
		d := now().Sub(t0)
		res.Phases.H2D += d
		res.Staged += uint64(len(b.data))
		log.Stage("h2d "+b.name, uint64(len(b.data)), d, nil)
	}

	if m.NumRows > 0 {
		log.Debug("dispatch", "partition", res.Partition.String())
		t0 := now()
		if err := o.dispatch(res.Partition, m, bufs); err != nil {
			log.Stage("dispatch", 0, 0, err)
			return nil, err
		}
		res.Phases.Kernel = now().Sub(t0)
		log.Stage("dispatch", 0, res.Phases.Kernel, nil)
	}

	res.Output = make([]float32, m.NumRows)
	out := accel.Bytes(res.Output)
	t0 := now()
	if err := o.copyOut(out, bufs[4]); err != nil {
		log.Stage("d2h y", uint64(len(out)), 0, err)
		return nil, err
	}
	res.Phases.D2H = now().Sub(t0)
	log.Stage("d2h y", uint64(len(out)), res.Phases.D2H, nil)

	switch o.opts.scope {
	case ScopeKernel:
		res.Elapsed = res.Phases.Kernel
	default:
		res.Elapsed = now().Sub(start)
	}
	return res, nil
}

func (o *Orchestrator) copyIn(b *staged) error {
	if err := o.dev.CopyH2D(b.ptr, b.data); err != nil {
		return err
	}
	if err := o.dev.Finish(); err != nil {
		return &accel.TransferError{Op: "h2d", Buffer: b.name, Err: err}
	}
	return nil
}

func (o *Orchestrator) dispatch(p accel.Partition, m *sparse.CSR, bufs []*staged) error {
	err := o.dev.Launch(o.kernel, p, uint32(m.NumRows), bufs[0].ptr, bufs[1].ptr, bufs[2].ptr, bufs[3].ptr, bufs[4].ptr)
	if err != nil {
		return err
	}
	if err := o.dev.Finish(); err != nil {
		return &accel.DispatchError{Kernel: o.kernel.Name(), Err: err}
	}
	return nil
}

func (o *Orchestrator) copyOut(dst []byte, b *staged) error {
	if err := o.dev.CopyD2H(dst, b.ptr); err != nil {
		return err
	}
	if err := o.dev.Finish(); err != nil {
		return &accel.TransferError{Op: "d2h", Buffer: b.name, Err: err}
	}
	return nil
}
