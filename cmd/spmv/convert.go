package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qrv0/spmv/internal/csrio"
	"github.com/qrv0/spmv/internal/fileformat"
	"github.com/qrv0/spmv/internal/gen"
	"github.com/qrv0/spmv/internal/sparse"
)

func sectionFlags(comp string) (uint32, error) {
	switch comp {
	case "", "none":
		return 0, nil
	case "zstd":
		return fileformat.FlagCompZSTD, nil
	case "lz4":
		return fileformat.FlagCompLZ4, nil
	}
	return 0, fmt.Errorf("unknown compression %q (want none, zstd or lz4)", comp)
}

// saveMatrix writes a .csrb container with the given section compression,
// or a text file whose compression follows the suffix.
func saveMatrix(path string, m *sparse.CSR, comp string) error {
	flags, err := sectionFlags(comp)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".csrb") {
		return fileformat.WriteMatrix(path, m, flags)
	}
	if flags != 0 {
		return fmt.Errorf("--comp applies to .csrb output; use a .zst or .lz4 suffix for text files")
	}
	return csrio.Save(path, m)
}

func cmdConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("in", "", "input matrix (text, .zst, .lz4 or .csrb)")
	out := fs.String("out", "", "output matrix; .csrb writes a container")
	comp := fs.String("comp", "none", "container section compression: none, zstd or lz4")
	fs.Parse(args)
	if *in == "" || *out == "" {
		fmt.Println("usage: spmv convert --in m.csr --out m.csrb [--comp zstd]")
		os.Exit(1)
	}
	m, err := csrio.Load(*in)
	if err != nil {
		fatal(fmt.Errorf("convert: %w", err))
	}
	if err := saveMatrix(*out, m, *comp); err != nil {
		fatal(fmt.Errorf("convert: %w", err))
	}
	fmt.Printf("Wrote %s: %dx%d nnz=%d\n", *out, m.NumRows, m.NumCols, m.NumNonzeros)
}

func cmdGen(args []string) {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	n := fs.Int("n", 0, "matrix dimension")
	density := fs.Uint64("density", 10_000, "density in ppm")
	seed := fs.Int64("seed", 1, "random seed")
	out := fs.String("out", "", "output file (.csr, .csr.zst, .csr.lz4 or .csrb)")
	comp := fs.String("comp", "none", "container section compression: none, zstd or lz4")
	fs.Parse(args)
	if *n <= 0 || *out == "" {
		fmt.Println("usage: spmv gen -n SIZE [--density PPM] [--seed S] --out FILE [--comp zstd]")
		os.Exit(1)
	}
	coo, err := gen.New(*seed).Matrix(*n, *density)
	if err != nil {
		fatal(fmt.Errorf("gen: %w", err))
	}
	m := sparse.FromCOO(coo)
	if err := saveMatrix(*out, m, *comp); err != nil {
		fatal(fmt.Errorf("gen: %w", err))
	}
	fmt.Printf("Wrote %s: %dx%d nnz=%d\n", *out, m.NumRows, m.NumCols, m.NumNonzeros)
}
