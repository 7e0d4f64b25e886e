package sparse

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// Dense materialises the matrix. Duplicate coordinates are summed.
func (m *CSR) Dense() *mat.Dense {
	if m.NumRows == 0 || m.NumCols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.NumRows, m.NumCols, nil)
	for r := 0; r < m.NumRows; r++ {
		cols, vals := m.Row(r)
		for k, c := range cols {
			d.Set(r, int(c), d.At(r, int(c))+float64(vals[k]))
		}
	}
	return d
}

// Print writes the matrix in standard two dimensional form. The output grows
// with rows*cols, so it is meant for small matrices only.
func Print(w io.Writer, m *CSR) error {
	if m.NumRows == 0 || m.NumCols == 0 {
		_, err := fmt.Fprintf(w, "[%dx%d empty]\n", m.NumRows, m.NumCols)
		return err
	}
	_, err := fmt.Fprintf(w, "%6.2f\n", mat.Formatted(m.Dense(), mat.Squeeze()))
	return err
}
