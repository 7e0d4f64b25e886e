package bench

import (
	"bytes"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrv0/spmv/internal/accel"
	_ "github.com/qrv0/spmv/internal/accel/cpu"
	"github.com/qrv0/spmv/internal/csrio"
	"github.com/qrv0/spmv/internal/logging"
	"github.com/qrv0/spmv/internal/sparse"
	"github.com/qrv0/spmv/internal/validate"
)

func openCPU(t *testing.T) accel.Device {
	t.Helper()
	d, err := accel.Open(accel.Config{Type: accel.CPU, Workers: 2})
	require.NoError(t, err)
	t.Cleanup(func() { d.Release() })
	return d
}

func TestLoadGenerated(t *testing.T) {
	cfg := Config{Size: 64, DensityPPM: 50_000, Seed: 9}
	a, err := Load(cfg, logging.Noop())
	require.NoError(t, err)
	b, err := Load(cfg, logging.Noop())
	require.NoError(t, err)

	assert.Equal(t, a.Matrix, b.Matrix)
	assert.Equal(t, a.X, b.X)
	assert.Len(t, a.X, 64)
	assert.Len(t, a.Y, 64)
	assert.NoError(t, a.Matrix.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.csr")
	coo := sparse.NewCOO(2, 3)
	coo.Append(1, 2, 4)
	require.NoError(t, csrio.Save(path, sparse.FromCOO(coo)))

	in, err := Load(Config{File: path}, logging.Noop())
	require.NoError(t, err)
	assert.Equal(t, path, in.Source)
	assert.Len(t, in.X, 3)
	assert.Len(t, in.Y, 2)

	_, err = Load(Config{File: filepath.Join(t.TempDir(), "missing.csr")}, logging.Noop())
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "file", cerr.Field)
}

func TestRunAffirm(t *testing.T) {
	cfg := Config{Size: 500, DensityPPM: 10_000, Seed: 1, Affirm: true, Iterations: 3}
	require.NoError(t, cfg.Validate())
	in, err := Load(cfg, logging.Noop())
	require.NoError(t, err)
	pristine := slices.Clone(in.Y)

	var out bytes.Buffer
	rep, err := Run(openCPU(t), in, cfg, logging.Noop(), &out)
	require.NoError(t, err)

	assert.Equal(t, pristine, in.Y, "seed must survive the run")
	require.NotNil(t, rep.Validation)
	assert.Empty(t, rep.Validation.Mismatches)
	require.NotNil(t, rep.Stats)
	assert.Equal(t, 3, rep.Stats.Iterations)
	assert.Equal(t, 500, rep.Matrix.Rows)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 167, rep.Partition.LocalSize)
	assert.Zero(t, out.Len())
}

func TestRunPrint(t *testing.T) {
	coo := sparse.NewCOO(3, 3)
	coo.Append(0, 0, 2)
	coo.Append(1, 1, 3)
	coo.Append(1, 2, 1)
	in := &Input{Source: "example", Matrix: sparse.FromCOO(coo), X: []float32{1, 1, 1}, Y: []float32{0, 0, 0}}

	var out bytes.Buffer
	rep, err := Run(openCPU(t), in, Config{Print: true, Affirm: true}, logging.Noop(), &out)
	require.NoError(t, err)
	assert.Nil(t, rep.Stats)
	assert.Empty(t, rep.Validation.Mismatches)

	text := out.String()
	assert.Contains(t, text, "x[2] =   1.00\n")
	assert.Contains(t, text, "y[0] =   0.00\n")
	assert.Contains(t, text, "row: 1\toutput:   4.00 \n")
	assert.True(t, strings.Index(text, "x[0]") < strings.Index(text, "row: 0"))
}

// corrupting flips the sign of one output row.
type corrupting struct {
	accel.Device
}

func (c corrupting) CopyD2H(dst []byte, src accel.Ptr) error {
	if err := c.Device.CopyD2H(dst, src); err != nil {
		return err
	}
	y := accel.View[float32](dst)
	y[0] += 1
	return nil
}

func TestRunReportsMismatches(t *testing.T) {
	cfg := Config{Size: 32, DensityPPM: 100_000, Seed: 4, Affirm: true}
	in, err := Load(cfg, logging.Noop())
	require.NoError(t, err)

	rep, err := Run(corrupting{openCPU(t)}, in, cfg, logging.Noop(), &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, rep.Validation.Mismatches, 1)
	assert.Equal(t, 0, rep.Validation.Mismatches[0].Row)
	assert.InDelta(t, 1.0, rep.Validation.MaxAbsDiff, 1e-5)

	ref := validate.Reference(in.Matrix, in.X, in.Y)
	assert.InDelta(t, ref[0]+1, rep.Validation.Mismatches[0].Offload, 1e-5)
}

func TestRunWithoutNonzeros(t *testing.T) {
	in := &Input{Matrix: sparse.FromCOO(sparse.NewCOO(1, 1)), X: []float32{0}, Y: []float32{0.5}}
	rep, err := Run(openCPU(t), in, Config{}, logging.Noop(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Zero(t, rep.GFLOPS)
	assert.Nil(t, rep.Validation)
}
