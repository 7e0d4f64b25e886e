package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/tebeka/atexit"

	"github.com/qrv0/spmv/internal/accel"
	"github.com/qrv0/spmv/internal/bench"
	"github.com/qrv0/spmv/internal/logging"
	"github.com/qrv0/spmv/internal/offload"
)

type runFlags struct {
	cfg     bench.Config
	verbose bool
	json    bool
	logJSON bool
	// seedSet is false when --seed was not given and the clock picked one.
	seedSet bool
}

func envInt(name string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return v
	}
	return def
}

// parseRun turns run arguments into a validated configuration. Every error
// is a *bench.ConfigError.
func parseRun(args []string, stderr io.Writer) (*runFlags, *flag.FlagSet, error) {
	rf := &runFlags{}
	c := &rf.cfg
	var (
		useCPU bool
		timing string
	)
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&useCPU, "cpu", false, "run on the emulated CPU device instead of the GPU")
	fs.IntVar(&c.Device.Index, "device", envInt("SPMV_DEVICE", 0), "device index (default $SPMV_DEVICE or 0)")
	fs.StringVar(&c.File, "f", "", "CSR matrix file (text, .zst, .lz4 or .csrb)")
	fs.StringVar(&c.File, "file", "", "same as -f")
	fs.IntVar(&c.Size, "n", 0, "generate an n x n matrix")
	fs.Uint64Var(&c.DensityPPM, "density", 10_000, "density of the generated matrix in ppm")
	fs.BoolVar(&rf.verbose, "v", false, "verbose logging")
	fs.BoolVar(&c.Print, "p", false, "print matrix, vectors and output (lots of output)")
	fs.BoolVar(&c.Affirm, "a", false, "affirm results with the serial host computation")
	fs.Int64Var(&c.Seed, "seed", 0, "random seed (default: from the clock)")
	fs.IntVar(&c.Iterations, "iterations", 1, "number of timed runs")
	fs.StringVar(&timing, "timing", "full", "timed interval: full (copies + kernel) or kernel")
	fs.BoolVar(&rf.json, "json", false, "write the report as JSON")
	fs.IntVar(&c.Device.MaxGroupSize, "group-size", 0, "maximum work-group size of the CPU device")
	fs.IntVar(&c.Device.Workers, "workers", 0, "goroutines of the CPU device (default GOMAXPROCS)")
	fs.BoolVar(&rf.logJSON, "log-json", false, "log as JSON")

	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: spmv run [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, fs, &bench.ConfigError{Field: "flags", Err: err}
	}
	if fs.NArg() > 0 {
		return nil, fs, &bench.ConfigError{Err: fmt.Errorf("unexpected argument %q", fs.Arg(0))}
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			rf.seedSet = true
		}
	})
	if !rf.seedSet {
		c.Seed = time.Now().UnixNano()
	}
	if useCPU {
		c.Device.Type = accel.CPU
	} else {
		c.Device.Type = accel.GPU
	}
	scope, err := offload.ParseTimingScope(timing)
	if err != nil {
		return nil, fs, &bench.ConfigError{Field: "timing", Err: err}
	}
	c.Timing = scope
	if err := c.Validate(); err != nil {
		return nil, fs, err
	}
	return rf, fs, nil
}

func cmdRun(args []string) {
	rf, fs, err := parseRun(args, os.Stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		atexit.Exit(0)
	case err != nil:
		var cerr *bench.ConfigError
		if errors.As(err, &cerr) && cerr.Field == "flags" {
			// the flag package already printed the problem and usage
			atexit.Exit(1)
		}
		runFailed(err, fs)
	}

	lvl := logging.Level(rf.verbose)
	log := logging.NewText(os.Stderr, lvl)
	if rf.logJSON {
		log = logging.NewJSON(os.Stderr, lvl)
	}
	if !rf.seedSet {
		log.Info("seed picked from clock", "seed", rf.cfg.Seed)
	}
	if rf.cfg.File != "" {
		log.Info("reading input", "file", rf.cfg.File)
	}

	in, err := bench.Load(rf.cfg, log)
	if err != nil {
		runFailed(err, fs)
	}

	dev, err := accel.Open(rf.cfg.Device)
	if err != nil {
		runFailed(err, fs)
	}
	atexit.Register(func() {
		if err := dev.Release(); err != nil {
			log.Warn("device release failed", "error", err)
		}
	})
	info := dev.Info()
	log.Debug("device opened", "name", info.Name, "type", info.Type.String(), "index", info.Index, "max_group_size", info.MaxGroupSize)

	rep, err := bench.Run(dev, in, rf.cfg, log, os.Stdout)
	if err != nil {
		runFailed(err, fs)
	}
	if rf.json {
		err = rep.WriteJSON(os.Stdout)
	} else {
		err = rep.WriteText(os.Stdout)
	}
	if err != nil {
		runFailed(err, fs)
	}
}

// runFailed prints a diagnostic for err by kind and exits with status 1.
func runFailed(err error, fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, describe(err))
	var cerr *bench.ConfigError
	if errors.As(err, &cerr) {
		fmt.Fprintln(os.Stderr)
		fs.Usage()
	}
	atexit.Exit(1)
}

func describe(err error) string {
	var (
		cerr *bench.ConfigError
		berr *accel.BuildError
		rerr *accel.ResourceError
		terr *accel.TransferError
		derr *accel.DispatchError
	)
	switch {
	case errors.As(err, &cerr):
		return "configuration error: " + err.Error()
	case errors.As(err, &berr):
		return fmt.Sprintf("Failed to build program! %v\nLog:\n%s", berr, berr.Log)
	case errors.As(err, &rerr):
		return "device resource error: " + err.Error()
	case errors.As(err, &terr):
		return "device transfer error: " + err.Error()
	case errors.As(err, &derr):
		return "kernel dispatch error: " + err.Error()
	}
	return "error: " + err.Error()
}
