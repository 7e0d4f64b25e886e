// Package bench wires the generator, the file readers, the offload
// orchestrator, the validator and the reporter into one benchmark run.
package bench

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/rs/xid"

	"github.com/qrv0/spmv/internal/accel"
	"github.com/qrv0/spmv/internal/csrio"
	"github.com/qrv0/spmv/internal/gen"
	"github.com/qrv0/spmv/internal/logging"
	"github.com/qrv0/spmv/internal/offload"
	"github.com/qrv0/spmv/internal/report"
	"github.com/qrv0/spmv/internal/sparse"
	"github.com/qrv0/spmv/internal/validate"
)

// Input is the matrix and vectors of one run.
type Input struct {
	Source string
	Matrix *sparse.CSR
	X, Y   []float32
}

// Load reads or generates the matrix and draws x and y from cfg.Seed. Every
// failure is a *ConfigError.
func Load(cfg Config, log *logging.Logger) (*Input, error) {
	g := gen.New(cfg.Seed)
	in := &Input{}
	if cfg.File != "" {
		m, err := csrio.Load(cfg.File)
		if err != nil {
			return nil, &ConfigError{Field: "file", Err: err}
		}
		in.Source, in.Matrix = cfg.File, m
		log.Info("matrix loaded", "file", cfg.File, "rows", m.NumRows, "cols", m.NumCols, "nnz", m.NumNonzeros)
	} else {
		coo, err := g.Matrix(cfg.Size, cfg.DensityPPM)
		if err != nil {
			return nil, &ConfigError{Field: "size", Err: err}
		}
		in.Matrix = sparse.FromCOO(coo)
		in.Source = fmt.Sprintf("generated n=%d density=%dppm", cfg.Size, cfg.DensityPPM)
		log.Info("matrix generated", "n", cfg.Size, "density_ppm", cfg.DensityPPM, "nnz", in.Matrix.NumNonzeros, "seed", cfg.Seed)
	}
	in.X, in.Y = g.Vectors(in.Matrix.NumCols, in.Matrix.NumRows)
	log.Debug("input generated")
	return in, nil
}

// Run executes cfg.Iterations offloads of in on dev. The y seed is
// snapshotted before any path runs; every iteration and the validator start
// from that snapshot. Print output goes to out. dev is not released.
func Run(dev accel.Device, in *Input, cfg Config, log *logging.Logger, out io.Writer) (*report.Report, error) {
	m := in.Matrix
	seed := slices.Clone(in.Y)

	if cfg.Print {
		if err := sparse.Print(out, m); err != nil {
			return nil, err
		}
		for i, v := range in.X {
			fmt.Fprintf(out, "x[%d] = %6.2f\n", i, v)
		}
		for i, v := range seed {
			fmt.Fprintf(out, "y[%d] = %6.2f\n", i, v)
		}
	}

	runID := xid.New().String()
	info := dev.Info()
	log = log.WithRun(runID).WithDevice(info.Name)

	o, err := offload.New(dev, offload.WithTimingScope(cfg.Timing), offload.WithLogger(log))
	if err != nil {
		return nil, err
	}

	iters := max(cfg.Iterations, 1)
	samples := make([]time.Duration, 0, iters)
	var res *offload.Result
	for i := 0; i < iters; i++ {
		res, err = o.Run(m, in.X, seed)
		if err != nil {
			return nil, err
		}
		samples = append(samples, res.Elapsed)
		log.Debug("iteration done", "iteration", i, "elapsed", res.Elapsed)
	}

	rep := &report.Report{
		RunID:       runID,
		Device:      info.Name,
		Seed:        cfg.Seed,
		TimingScope: cfg.Timing.String(),
		Matrix: report.Matrix{
			Source:      in.Source,
			Rows:        m.NumRows,
			Cols:        m.NumCols,
			Nonzeros:    m.NumNonzeros,
			Fingerprint: report.Fingerprint(m),
		},
	}
	rep.SetTiming(res.Partition, res.Elapsed, res.Phases.H2D, res.Phases.Kernel, res.Phases.D2H)
	if iters > 1 {
		s := report.Summarize(samples, m.NumNonzeros)
		rep.Stats = &s
	}

	if cfg.Print {
		for i, v := range res.Output {
			fmt.Fprintf(out, "row: %d\toutput: %6.2f \n", i, v)
		}
	}

	if cfg.Affirm {
		log.Debug("validating results with serial code on host")
		ref := validate.Reference(m, in.X, seed)
		mm := validate.Compare(res.Output, ref, validate.Tolerance)
		if mm == nil {
			mm = []validate.Mismatch{}
		}
		rep.Validation = &report.Validation{
			Tolerance:  validate.Tolerance,
			MaxAbsDiff: validate.MaxAbsDiff(res.Output, ref),
			Mismatches: mm,
		}
		if len(mm) > 0 {
			log.Warn("validation mismatches", "rows", len(mm))
		}
	}
	return rep, nil
}
