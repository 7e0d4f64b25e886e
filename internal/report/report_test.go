package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrv0/spmv/internal/accel"
	"github.com/qrv0/spmv/internal/sparse"
	"github.com/qrv0/spmv/internal/validate"
)

func TestGFLOPS(t *testing.T) {
	assert.InDelta(t, 0.004, GFLOPS(1_000_000, 500*time.Millisecond), 1e-12)
	assert.Zero(t, GFLOPS(10, 0))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 6 * time.Millisecond}, 1_000_000)
	assert.Equal(t, 3, s.Iterations)
	assert.InDelta(t, 4.0, s.MeanMS, 1e-9)
	assert.InDelta(t, 2.0, s.StdDevMS, 1e-9)
	assert.InDelta(t, 2.0, s.MinMS, 1e-9)
	assert.InDelta(t, 6.0, s.MaxMS, 1e-9)
	assert.InDelta(t, 1.0, s.BestGFLOPS, 1e-9)

	one := Summarize([]time.Duration{time.Millisecond}, 1)
	assert.Zero(t, one.StdDevMS)
	assert.Equal(t, Stats{}, Summarize(nil, 1))
}

func TestFingerprint(t *testing.T) {
	coo := sparse.NewCOO(2, 2)
	coo.Append(0, 1, 1.5)
	a := sparse.FromCOO(coo)
	b := sparse.FromCOO(coo)
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 16)

	b.Values[0] = 2
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	// Same arrays, different column count.
	c := sparse.FromCOO(coo)
	c.NumCols = 3
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func sample() *Report {
	r := &Report{
		RunID:       "cs1run",
		Device:      "emulated cpu",
		TimingScope: "full",
		Matrix:      Matrix{Source: "generated", Rows: 3, Cols: 3, Nonzeros: 1_000_000},
	}
	r.SetTiming(accel.PlanPartition(3, 256), 500*time.Millisecond, time.Millisecond, 2*time.Millisecond, 3*time.Millisecond)
	return r
}

func TestWriteText(t *testing.T) {
	color.NoColor = true
	r := sample()
	r.Validation = &Validation{Tolerance: validate.Tolerance, Mismatches: []validate.Mismatch{{Row: 1, Offload: 1, Reference: 2}}}

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "Time consumed(ms): 500.000000 Gflops: 0.004000 \n")
	assert.Contains(t, out, "Possible error, difference greater then .001 at row 1\n")
	assert.Contains(t, out, "1 of 3 rows differ")
	assert.Contains(t, out, "globalsize: 4 - num_wg: 2 - local_size: 2")
}

func TestWriteJSON(t *testing.T) {
	r := sample()
	s := Summarize([]time.Duration{time.Millisecond}, 3)
	r.Stats = &s

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "cs1run", got["run_id"])
	assert.InDelta(t, 0.004, got["gflops"], 1e-12)
	assert.NotContains(t, got, "validation")
	assert.Contains(t, got, "stats")
}
