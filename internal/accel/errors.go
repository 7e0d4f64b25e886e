package accel

import (
	"errors"
	"fmt"
)

var (
	ErrNoBackend     = errors.New("no backend registered for device type")
	ErrNoDevice      = errors.New("device index out of range")
	ErrUnknownBuffer = errors.New("unknown device buffer")
	ErrReleased      = errors.New("device released")
)

// ResourceError reports a failure to acquire a device, queue, buffer or
// kernel handle.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string { return fmt.Sprintf("resource: %s: %v", e.Op, e.Err) }

func (e *ResourceError) Unwrap() error { return e.Err }

// BuildError reports a kernel build failure together with the build log.
type BuildError struct {
	Kernel string
	Log    string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build kernel %q: %v", e.Kernel, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// TransferError reports a failed host/device copy.
type TransferError struct {
	Op     string // "h2d" or "d2h"
	Buffer string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s %s: %v", e.Op, e.Buffer, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// DispatchError reports a failed kernel launch or completion wait.
type DispatchError struct {
	Kernel string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Kernel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
