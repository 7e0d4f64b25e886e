// Package csrio reads and writes CSR matrices as whitespace separated text:
//
//	num_rows num_cols num_nonzeros
//	row_ptr[0] ... row_ptr[num_rows]
//	col_idx[0] ... col_idx[num_nonzeros-1]
//	values[0] ... values[num_nonzeros-1]
//
// Line breaks carry no meaning; any whitespace separates tokens.
package csrio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/qrv0/spmv/internal/sparse"
)

// ErrFormat is wrapped by every parse error.
var ErrFormat = errors.New("malformed csr stream")

const maxPrealloc = 1 << 20

type scanner struct {
	s   *bufio.Scanner
	pos int
}

func (sc *scanner) next(what string) (string, error) {
	if !sc.s.Scan() {
		if err := sc.s.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: unexpected end of input reading %s", ErrFormat, what)
	}
	sc.pos++
	return sc.s.Text(), nil
}

func (sc *scanner) count(what string) (int, error) {
	tok, err := sc.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: token %d (%s): %v", ErrFormat, sc.pos, what, err)
	}
	return int(v), nil
}

func (sc *scanner) u32s(n int, what string) ([]uint32, error) {
	out := make([]uint32, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		tok, err := sc.next(what)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d (%s[%d]): %v", ErrFormat, sc.pos, what, i, err)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

func (sc *scanner) f32s(n int) ([]float32, error) {
	out := make([]float32, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		tok, err := sc.next("values")
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d (values[%d]): %v", ErrFormat, sc.pos, i, err)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

// Read parses one matrix from r and validates it. Tokens after the last
// value are an error.
func Read(r io.Reader) (*sparse.CSR, error) {
	sc := &scanner{s: bufio.NewScanner(r)}
	sc.s.Buffer(make([]byte, 64<<10), 1<<20)
	sc.s.Split(bufio.ScanWords)

	var (
		m   sparse.CSR
		err error
	)
	if m.NumRows, err = sc.count("num_rows"); err != nil {
		return nil, err
	}
	if m.NumCols, err = sc.count("num_cols"); err != nil {
		return nil, err
	}
	if m.NumNonzeros, err = sc.count("num_nonzeros"); err != nil {
		return nil, err
	}
	if m.RowPtr, err = sc.u32s(m.NumRows+1, "row_ptr"); err != nil {
		return nil, err
	}
	if m.ColIdx, err = sc.u32s(m.NumNonzeros, "col_idx"); err != nil {
		return nil, err
	}
	if m.Values, err = sc.f32s(m.NumNonzeros); err != nil {
		return nil, err
	}
	if sc.s.Scan() {
		return nil, fmt.Errorf("%w: trailing data at token %d", ErrFormat, sc.pos+1)
	}
	if err := sc.s.Err(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Write emits m in the text format, one section per line. Values use the
// shortest representation that reads back to the same float32.
func Write(w io.Writer, m *sparse.CSR) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d %d\n", m.NumRows, m.NumCols, m.NumNonzeros)

	var scratch [32]byte
	tok := scratch[:0]
	for i, v := range m.RowPtr {
		sep(bw, i)
		bw.Write(strconv.AppendUint(tok, uint64(v), 10))
	}
	bw.WriteByte('\n')
	for i, v := range m.ColIdx {
		sep(bw, i)
		bw.Write(strconv.AppendUint(tok, uint64(v), 10))
	}
	bw.WriteByte('\n')
	for i, v := range m.Values {
		sep(bw, i)
		bw.Write(strconv.AppendFloat(tok, float64(v), 'g', -1, 32))
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func sep(bw *bufio.Writer, i int) {
	if i > 0 {
		bw.WriteByte(' ')
	}
}
