package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tebeka/atexit"

	"github.com/qrv0/spmv/internal/fileformat"
)

// verifyFile checks the container at path and returns the exit status:
// 0 when every checksum matches, 2 without a checksum index, 3 on mismatch.
func verifyFile(w io.Writer, path string) (int, error) {
	r, err := fileformat.Open(path)
	if err != nil {
		return 1, fmt.Errorf("verify: open error: %w", err)
	}
	defer r.Close()
	meta, err := fileformat.ReadMeta(r)
	if err != nil {
		return 1, fmt.Errorf("verify: %w", err)
	}
	if len(meta.ChecksumIndex) == 0 {
		fmt.Fprintln(w, "no checksum_index in META")
		return 2, nil
	}
	probs, err := fileformat.Verify(r)
	if err != nil {
		return 1, fmt.Errorf("verify: %w", err)
	}
	for _, p := range probs {
		fmt.Fprintln(w, p.String())
	}
	if len(probs) > 0 {
		fmt.Fprintln(w, "checksum verify: FAILED")
		return 3, nil
	}
	fmt.Fprintln(w, "checksum verify: OK")
	return 0, nil
}

func cmdVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	in := fs.String("in", "", "input .csrb")
	fs.Parse(args)
	if *in == "" {
		fmt.Println("usage: spmv verify --in m.csrb")
		os.Exit(1)
	}
	code, err := verifyFile(os.Stdout, *in)
	if err != nil {
		fatal(err)
	}
	if code != 0 {
		atexit.Exit(code)
	}
}
