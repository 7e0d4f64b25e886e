package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/stat"

	"github.com/qrv0/spmv/internal/csrio"
	"github.com/qrv0/spmv/internal/fileformat"
	"github.com/qrv0/spmv/internal/report"
	"github.com/qrv0/spmv/internal/sparse"
)

func cmdInspect(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: spmv inspect <file>")
		os.Exit(1)
	}
	path := args[0]
	if csrio.IsContainer(path) {
		if err := inspectContainer(os.Stdout, path); err != nil {
			fatal(err)
		}
	}
	m, err := csrio.Load(path)
	if err != nil {
		fatal(err)
	}
	describeMatrix(os.Stdout, m)
}

func inspectContainer(w io.Writer, path string) error {
	r, err := fileformat.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	fmt.Fprintf(w, "CSRB version %d, %d sections\n", r.Ver, len(r.TOC))
	for _, e := range r.TOC {
		fmt.Fprintf(w, "  %-8s offset=%-8d size=%-10d comp=%s\n", fileformat.TypeName(e.TypeID), e.Offset, e.Size, compName(e.Flags))
	}
	meta, err := fileformat.ReadMeta(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "META: format_version=%d author=%s\n", meta.FormatVersion, meta.Author)
	if len(meta.ChecksumIndex) > 0 {
		fmt.Fprintln(w, "Checksums:")
		for _, t := range []uint32{fileformat.TypeRowPtr, fileformat.TypeColIdx, fileformat.TypeValues} {
			c, ok := meta.ChecksumIndex[fileformat.TypeName(t)]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  section %s: chunks=%d chunk_size=%d algo=%s\n", fileformat.TypeName(t), c.Count, c.ChunkSize, c.Algo)
		}
	}
	return nil
}

func compName(flags uint32) string {
	switch {
	case flags&fileformat.FlagCompZSTD != 0:
		return "zstd"
	case flags&fileformat.FlagCompLZ4 != 0:
		return "lz4"
	}
	return "none"
}

type matrixSummary struct {
	Rows        int     `json:"rows"`
	Cols        int     `json:"cols"`
	Nonzeros    int     `json:"nonzeros"`
	DensityPPM  float64 `json:"density_ppm"`
	EmptyRows   int     `json:"empty_rows"`
	MaxRowLen   int     `json:"max_row_len"`
	MeanRowLen  float64 `json:"mean_row_len"`
	StdRowLen   float64 `json:"stddev_row_len"`
	Fingerprint string  `json:"fingerprint"`
}

func summarize(m *sparse.CSR) matrixSummary {
	s := matrixSummary{Rows: m.NumRows, Cols: m.NumCols, Nonzeros: m.NumNonzeros, Fingerprint: report.Fingerprint(m)}
	if m.NumRows > 0 && m.NumCols > 0 {
		s.DensityPPM = float64(m.NumNonzeros) / (float64(m.NumRows) * float64(m.NumCols)) * 1e6
	}
	lens := make([]float64, m.NumRows)
	for r := range lens {
		n := int(m.RowPtr[r+1] - m.RowPtr[r])
		lens[r] = float64(n)
		if n == 0 {
			s.EmptyRows++
		}
		s.MaxRowLen = max(s.MaxRowLen, n)
	}
	if len(lens) > 0 {
		s.MeanRowLen = stat.Mean(lens, nil)
	}
	if len(lens) > 1 {
		s.StdRowLen = stat.StdDev(lens, nil)
	}
	return s
}

func describeMatrix(w io.Writer, m *sparse.CSR) {
	b, _ := json.MarshalIndent(summarize(m), "", "  ")
	fmt.Fprintln(w, "Matrix:")
	fmt.Fprintln(w, string(b))
}
