package sparse

import (
	"errors"
	"fmt"
)

// ErrInvalidCSR is wrapped by every error returned from (*CSR).Validate.
var ErrInvalidCSR = errors.New("invalid csr matrix")

// CSR is a compressed sparse row matrix. The nonzeros of row r occupy the
// half-open range [RowPtr[r], RowPtr[r+1]) of ColIdx and Values. Entries
// inside a row are not sorted by column.
type CSR struct {
	NumRows     int
	NumCols     int
	NumNonzeros int

	RowPtr []uint32
	ColIdx []uint32
	Values []float32
}

// FromCOO converts a COO matrix in two linear passes over the entries:
// a per-row count, a prefix sum into RowPtr, then a scatter that places
// every entry at its row's next free slot. No entry is merged or dropped.
// FromCOO panics if an entry lies outside the COO dimensions, as Append does.
func FromCOO(coo *COO) *CSR {
	nnz := len(coo.Entries)
	m := &CSR{
		NumRows:     coo.NumRows,
		NumCols:     coo.NumCols,
		NumNonzeros: nnz,
		RowPtr:      make([]uint32, coo.NumRows+1),
		ColIdx:      make([]uint32, nnz),
		Values:      make([]float32, nnz),
	}

	counts := make([]uint32, coo.NumRows)
	for i, e := range coo.Entries {
		if e.Row < 0 || coo.NumRows <= e.Row {
			panic(fmt.Sprintf("sparse: entry %d row index %d out of range [0,%d)", i, e.Row, coo.NumRows))
		}
		if e.Col < 0 || coo.NumCols <= e.Col {
			panic(fmt.Sprintf("sparse: entry %d column index %d out of range [0,%d)", i, e.Col, coo.NumCols))
		}
		counts[e.Row]++
	}

	for r := 0; r < coo.NumRows; r++ {
		m.RowPtr[r+1] = m.RowPtr[r] + counts[r]
	}

	// counts is reused as the per-row write cursor
	copy(counts, m.RowPtr[:coo.NumRows])
	for _, e := range coo.Entries {
		k := counts[e.Row]
		m.ColIdx[k] = uint32(e.Col)
		m.Values[k] = e.Value
		counts[e.Row]++
	}
	return m
}

// Validate checks the structural invariants of the matrix.
func (m *CSR) Validate() error {
	if m.NumRows < 0 || m.NumCols < 0 || m.NumNonzeros < 0 {
		return fmt.Errorf("%w: negative dimension %dx%d nnz=%d", ErrInvalidCSR, m.NumRows, m.NumCols, m.NumNonzeros)
	}
	if len(m.RowPtr) != m.NumRows+1 {
		return fmt.Errorf("%w: row_ptr length %d, want %d", ErrInvalidCSR, len(m.RowPtr), m.NumRows+1)
	}
	if len(m.ColIdx) != m.NumNonzeros || len(m.Values) != m.NumNonzeros {
		return fmt.Errorf("%w: col_idx/values length %d/%d, want %d", ErrInvalidCSR, len(m.ColIdx), len(m.Values), m.NumNonzeros)
	}
	if m.RowPtr[0] != 0 {
		return fmt.Errorf("%w: row_ptr[0]=%d", ErrInvalidCSR, m.RowPtr[0])
	}
	if int(m.RowPtr[m.NumRows]) != m.NumNonzeros {
		return fmt.Errorf("%w: row_ptr[%d]=%d, want %d", ErrInvalidCSR, m.NumRows, m.RowPtr[m.NumRows], m.NumNonzeros)
	}
	for r := 0; r < m.NumRows; r++ {
		if m.RowPtr[r] > m.RowPtr[r+1] {
			return fmt.Errorf("%w: row_ptr decreases at row %d", ErrInvalidCSR, r)
		}
	}
	for k, c := range m.ColIdx {
		if int(c) >= m.NumCols {
			return fmt.Errorf("%w: col_idx[%d]=%d out of range [0,%d)", ErrInvalidCSR, k, c, m.NumCols)
		}
	}
	return nil
}

// Row returns the column indices and values of row r. The slices alias the
// matrix storage.
func (m *CSR) Row(r int) ([]uint32, []float32) {
	lo, hi := m.RowPtr[r], m.RowPtr[r+1]
	return m.ColIdx[lo:hi], m.Values[lo:hi]
}

// Entries walks the matrix back into coordinate form, row by row.
func (m *CSR) Entries() []Entry {
	out := make([]Entry, 0, m.NumNonzeros)
	for r := 0; r < m.NumRows; r++ {
		cols, vals := m.Row(r)
		for k := range cols {
			out = append(out, Entry{Row: r, Col: int(cols[k]), Value: vals[k]})
		}
	}
	return out
}

// Bytes returns the host memory footprint of the three arrays.
func (m *CSR) Bytes() int {
	return 4*len(m.RowPtr) + 4*len(m.ColIdx) + 4*len(m.Values)
}
