package bench

import (
	"errors"
	"fmt"

	"github.com/qrv0/spmv/internal/accel"
	"github.com/qrv0/spmv/internal/gen"
	"github.com/qrv0/spmv/internal/offload"
)

var (
	ErrNoInput   = errors.New("no input: pass -f FILE or -n SIZE")
	ErrTwoInputs = errors.New("-f and -n are mutually exclusive")
)

// ConfigError reports missing or malformed input. The CLI prints usage for it.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type Config struct {
	Device accel.Config

	// File is a CSR text or container file. Exclusive with Size.
	File string
	// Size and DensityPPM describe a generated square matrix.
	Size       int
	DensityPPM uint64

	Seed       int64
	Iterations int
	Timing     offload.TimingScope

	// Print dumps the matrix, the vectors and the output.
	Print bool
	// Affirm recomputes the product serially and compares row by row.
	Affirm bool
}

// Validate checks the input selection and fills defaults.
func (c *Config) Validate() error {
	switch {
	case c.File == "" && c.Size == 0:
		return &ConfigError{Err: ErrNoInput}
	case c.File != "" && c.Size != 0:
		return &ConfigError{Err: ErrTwoInputs}
	}
	if c.File == "" {
		if c.Size < 0 {
			return &ConfigError{Field: "size", Err: fmt.Errorf("%w: %d", gen.ErrInvalidSize, c.Size)}
		}
		if c.DensityPPM > gen.PPM {
			return &ConfigError{Field: "density", Err: fmt.Errorf("%w: %d ppm", gen.ErrInvalidDensity, c.DensityPPM)}
		}
	}
	if c.Iterations < 0 {
		return &ConfigError{Field: "iterations", Err: fmt.Errorf("must be positive, got %d", c.Iterations)}
	}
	if c.Iterations == 0 {
		c.Iterations = 1
	}
	if c.Device.Index < 0 {
		return &ConfigError{Field: "device", Err: fmt.Errorf("%w: %d", accel.ErrNoDevice, c.Device.Index)}
	}
	if c.Device.MaxGroupSize < 0 || c.Device.Workers < 0 {
		return &ConfigError{Field: "device", Err: errors.New("group size and workers must not be negative")}
	}
	return nil
}
