// Package report turns timings into throughput figures and renders the
// result of a benchmark run.
package report

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	xxh3 "github.com/zeebo/xxh3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/qrv0/spmv/internal/accel"
	"github.com/qrv0/spmv/internal/sparse"
	"github.com/qrv0/spmv/internal/validate"
)

// GFLOPS returns (2*nnz/seconds)/1e9: one multiply and one add per nonzero.
func GFLOPS(nnz int, elapsed time.Duration) float64 {
	s := elapsed.Seconds()
	if s <= 0 {
		return 0
	}
	return (2 * float64(nnz) / s) / 1e9
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// Fingerprint is an xxh3-64 digest of the matrix shape and arrays, as hex.
func Fingerprint(m *sparse.CSR) string {
	h := xxh3.New()
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:], uint64(m.NumRows))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(m.NumCols))
	binary.LittleEndian.PutUint64(hdr[16:], uint64(m.NumNonzeros))
	h.Write(hdr[:])
	h.Write(accel.Bytes(m.RowPtr))
	h.Write(accel.Bytes(m.ColIdx))
	h.Write(accel.Bytes(m.Values))
	return fmt.Sprintf("%016x", h.Sum64())
}

type Matrix struct {
	Source      string `json:"source"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	Nonzeros    int    `json:"nonzeros"`
	Fingerprint string `json:"fingerprint"`
}

type Partition struct {
	GlobalSize int `json:"global_size"`
	LocalSize  int `json:"local_size"`
	NumGroups  int `json:"num_groups"`
}

type Phases struct {
	H2DMS    float64 `json:"h2d_ms"`
	KernelMS float64 `json:"kernel_ms"`
	D2HMS    float64 `json:"d2h_ms"`
}

// Stats summarises repeated iterations.
type Stats struct {
	Iterations int     `json:"iterations"`
	MeanMS     float64 `json:"mean_ms"`
	StdDevMS   float64 `json:"stddev_ms"`
	MinMS      float64 `json:"min_ms"`
	MaxMS      float64 `json:"max_ms"`
	BestGFLOPS float64 `json:"best_gflops"`
}

// Summarize computes Stats over per-iteration elapsed times.
func Summarize(samples []time.Duration, nnz int) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	xs := make([]float64, len(samples))
	for i, d := range samples {
		xs[i] = ms(d)
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}
	lo := floats.Min(xs)
	return Stats{
		Iterations: len(xs),
		MeanMS:     mean,
		StdDevMS:   std,
		MinMS:      lo,
		MaxMS:      floats.Max(xs),
		BestGFLOPS: GFLOPS(nnz, time.Duration(lo*float64(time.Millisecond))),
	}
}

type Validation struct {
	Tolerance  float64             `json:"tolerance"`
	MaxAbsDiff float64             `json:"max_abs_diff"`
	Mismatches []validate.Mismatch `json:"mismatches"`
}

type Report struct {
	RunID       string      `json:"run_id"`
	Device      string      `json:"device"`
	Seed        int64       `json:"seed"`
	Matrix      Matrix      `json:"matrix"`
	Partition   Partition   `json:"partition"`
	TimingScope string      `json:"timing_scope"`
	ElapsedMS   float64     `json:"elapsed_ms"`
	GFLOPS      float64     `json:"gflops"`
	Phases      Phases      `json:"phases"`
	Stats       *Stats      `json:"stats,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
}

// SetTiming fills the elapsed time, throughput, partition and phases.
func (r *Report) SetTiming(p accel.Partition, elapsed, h2d, kernel, d2h time.Duration) {
	r.Partition = Partition{GlobalSize: p.GlobalSize, LocalSize: p.LocalSize, NumGroups: p.NumGroups}
	r.ElapsedMS = ms(elapsed)
	r.GFLOPS = GFLOPS(r.Matrix.Nonzeros, elapsed)
	r.Phases = Phases{H2DMS: ms(h2d), KernelMS: ms(kernel), D2HMS: ms(d2h)}
}

func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r *Report) WriteText(w io.Writer) error {
	warn := color.New(color.FgRed)
	ok := color.New(color.FgGreen)

	fmt.Fprintf(w, "run %s on %s\n", r.RunID, r.Device)
	fmt.Fprintf(w, "matrix %s: %dx%d nnz=%d xxh3=%s\n", r.Matrix.Source, r.Matrix.Rows, r.Matrix.Cols, r.Matrix.Nonzeros, r.Matrix.Fingerprint)
	fmt.Fprintf(w, "globalsize: %d - num_wg: %d - local_size: %d\n", r.Partition.GlobalSize, r.Partition.NumGroups, r.Partition.LocalSize)
	fmt.Fprintf(w, "phases(ms): h2d %.3f kernel %.3f d2h %.3f (timing %s)\n", r.Phases.H2DMS, r.Phases.KernelMS, r.Phases.D2HMS, r.TimingScope)
	if r.Stats != nil {
		s := r.Stats
		fmt.Fprintf(w, "iterations %d: mean %.3f ms stddev %.3f ms min %.3f ms max %.3f ms best %.6f Gflops\n",
			s.Iterations, s.MeanMS, s.StdDevMS, s.MinMS, s.MaxMS, s.BestGFLOPS)
	}
	if v := r.Validation; v != nil {
		for _, m := range v.Mismatches {
			warn.Fprintln(w, m.String())
		}
		if len(v.Mismatches) == 0 {
			ok.Fprintf(w, "validation passed (max |diff| %.6g)\n", v.MaxAbsDiff)
		} else {
			warn.Fprintf(w, "validation: %d of %d rows differ (max |diff| %.6g)\n", len(v.Mismatches), r.Matrix.Rows, v.MaxAbsDiff)
		}
	}
	_, err := fmt.Fprintf(w, "Time consumed(ms): %f Gflops: %f \n", r.ElapsedMS, r.GFLOPS)
	return err
}
