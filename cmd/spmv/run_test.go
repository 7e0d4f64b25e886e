package main

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrv0/spmv/internal/accel"
	"github.com/qrv0/spmv/internal/bench"
	"github.com/qrv0/spmv/internal/offload"
)

func TestParseRun(t *testing.T) {
	t.Setenv("SPMV_DEVICE", "2")
	rf, _, err := parseRun([]string{"--cpu", "-n", "100", "--density", "500", "-a", "--seed", "7", "--timing", "kernel", "--iterations", "3"}, io.Discard)
	require.NoError(t, err)
	c := rf.cfg
	assert.Equal(t, accel.CPU, c.Device.Type)
	assert.Equal(t, 2, c.Device.Index)
	assert.Equal(t, 100, c.Size)
	assert.EqualValues(t, 500, c.DensityPPM)
	assert.True(t, c.Affirm)
	assert.True(t, rf.seedSet)
	assert.EqualValues(t, 7, c.Seed)
	assert.Equal(t, offload.ScopeKernel, c.Timing)
	assert.Equal(t, 3, c.Iterations)
}

func TestParseRunDefaults(t *testing.T) {
	rf, _, err := parseRun([]string{"--file", "m.csr", "--device", "1"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, accel.GPU, rf.cfg.Device.Type)
	assert.Equal(t, 1, rf.cfg.Device.Index)
	assert.Equal(t, "m.csr", rf.cfg.File)
	assert.False(t, rf.seedSet)
	assert.NotZero(t, rf.cfg.Seed)
	assert.Equal(t, offload.ScopeFull, rf.cfg.Timing)
}

func TestParseRunErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-f", "m.csr", "-n", "3"},
		{"-n", "3", "--timing", "h2d"},
		{"-n", "3", "--bogus"},
		{"-n", "3", "extra"},
	} {
		_, _, err := parseRun(args, io.Discard)
		var cerr *bench.ConfigError
		assert.ErrorAs(t, err, &cerr, "%v", args)
	}
}

func TestDescribe(t *testing.T) {
	msg := describe(&accel.BuildError{Kernel: "csr", Log: "line 3: syntax error", Err: errors.New("build failed")})
	assert.Contains(t, msg, "Failed to build program!")
	assert.Contains(t, msg, "line 3: syntax error")

	assert.Contains(t, describe(&accel.ResourceError{Op: "open gpu", Err: errors.New("x")}), "device resource error")
	assert.Contains(t, describe(&accel.TransferError{Op: "h2d", Buffer: "x", Err: errors.New("x")}), "transfer")
	assert.Contains(t, describe(&accel.DispatchError{Kernel: "csr", Err: errors.New("x")}), "dispatch")
	assert.Contains(t, describe(&bench.ConfigError{Err: bench.ErrNoInput}), "configuration error")
}
