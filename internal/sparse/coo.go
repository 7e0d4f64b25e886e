// Package sparse holds the coordinate (COO) and compressed sparse row (CSR)
// matrix representations used by the benchmark, and the conversion between
// them.
package sparse

import "fmt"

// Entry is one (row, col, value) triple of a COO matrix.
type Entry struct {
	Row   int
	Col   int
	Value float32
}

// COO is an unordered coordinate list. Repeated coordinates are kept as
// separate entries and contribute additively to any product.
type COO struct {
	NumRows int
	NumCols int
	Entries []Entry
}

func NewCOO(rows, cols int) *COO {
	return &COO{NumRows: rows, NumCols: cols}
}

// Append adds an entry. It panics if the coordinate is out of range.
func (m *COO) Append(i, j int, v float32) {
	if i < 0 || m.NumRows <= i {
		panic(fmt.Sprintf("sparse: row index %d out of range [0,%d)", i, m.NumRows))
	}
	if j < 0 || m.NumCols <= j {
		panic(fmt.Sprintf("sparse: column index %d out of range [0,%d)", j, m.NumCols))
	}
	m.Entries = append(m.Entries, Entry{Row: i, Col: j, Value: v})
}

func (m *COO) NumNonzeros() int { return len(m.Entries) }
