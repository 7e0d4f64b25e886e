// Package accel is the host-side view of a data-parallel accelerator:
// device buffers, kernel builds, 1-D launches and completion barriers.
// Backends live in their own packages and register themselves with
// Register; callers pick one through Open with an explicit Config.
package accel

import "fmt"

// DeviceType selects a backend.
type DeviceType int

const (
	GPU DeviceType = iota
	CPU
)

func (t DeviceType) String() string {
	switch t {
	case GPU:
		return "gpu"
	case CPU:
		return "cpu"
	default:
		return fmt.Sprintf("DeviceType(%d)", int(t))
	}
}

// Config identifies the device to open. It replaces any process-wide
// platform or device selection.
type Config struct {
	Type  DeviceType
	Index int

	// MaxGroupSize overrides the group size reported by emulated devices.
	// Zero keeps the backend default. Hardware backends ignore it.
	MaxGroupSize int
	// Workers bounds the host goroutines of emulated devices. Zero means
	// GOMAXPROCS.
	Workers int
}

type Info struct {
	Name         string
	Type         DeviceType
	Index        int
	MaxGroupSize int
}

// Ptr is an opaque device buffer handle.
type Ptr uint64

type MemFlags uint32

const (
	MemReadOnly MemFlags = 1 << iota
	MemReadWrite
)

// Arg is a kernel argument: a scalar or a Ptr.
type Arg any

type Kernel interface {
	Name() string
}

// Device is a single accelerator. Operations may be queued by the backend;
// Finish blocks until everything issued so far has completed.
type Device interface {
	Info() Info

	Allocate(size uint64, flags MemFlags) (Ptr, error)
	Free(p Ptr) error
	CopyH2D(dst Ptr, src []byte) error
	CopyD2H(dst []byte, src Ptr) error

	Build(kernel string) (Kernel, error)
	Launch(k Kernel, p Partition, args ...Arg) error

	Finish() error
	Release() error
}
