//go:build !cuda

package gpu

import (
	"errors"

	"github.com/qrv0/spmv/internal/accel"
)

// ErrUnavailable is returned when the binary was built without CUDA.
var ErrUnavailable = errors.New("gpu backend unavailable: rebuild with -tags cuda, or run with --cpu")

func init() {
	accel.Register(accel.GPU, func(cfg accel.Config) (accel.Device, error) {
		return nil, &accel.ResourceError{Op: "open gpu", Err: ErrUnavailable}
	})
}

func DeviceCount() int { return 0 }

func Available() bool { return false }
