// Package validate recomputes SpMV serially on the host and compares it with
// an offloaded result.
package validate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/qrv0/spmv/internal/sparse"
)

// Tolerance is the default allowed magnitude difference per row.
const Tolerance = 0.001

// Mismatch is one row whose offloaded value differs from the reference.
// Missing is set when only one side has the row; the absent value is zero.
type Mismatch struct {
	Row       int     `json:"row"`
	Offload   float32 `json:"offload"`
	Reference float32 `json:"reference"`
	Missing   bool    `json:"missing,omitempty"`
}

func (m Mismatch) String() string {
	if m.Missing {
		return fmt.Sprintf("Possible error, no value to compare at row %d", m.Row)
	}
	return fmt.Sprintf("Possible error, difference greater then .001 at row %d", m.Row)
}

// Reference returns seed + A*x computed row by row on one goroutine. seed is
// not modified.
func Reference(m *sparse.CSR, x, seed []float32) []float32 {
	out := make([]float32, m.NumRows)
	for r := 0; r < m.NumRows; r++ {
		sum := seed[r]
		for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
			sum += m.Values[k] * x[m.ColIdx[k]]
		}
		out[r] = sum
	}
	return out
}

// Differs reports whether | |a| - |b| | > tol. Only magnitudes are compared,
// so values of equal magnitude and opposite sign match.
func Differs(a, b, tol float32) bool {
	return math.Abs(math.Abs(float64(a))-math.Abs(float64(b))) > float64(tol)
}

// Compare returns the rows of offload that differ from reference. When the
// lengths differ, every row past the shorter slice is a Missing mismatch.
func Compare(offload, reference []float32, tol float32) []Mismatch {
	var out []Mismatch
	n := min(len(offload), len(reference))
	for i := 0; i < n; i++ {
		if Differs(offload[i], reference[i], tol) {
			out = append(out, Mismatch{Row: i, Offload: offload[i], Reference: reference[i]})
		}
	}
	for i := n; i < len(offload); i++ {
		out = append(out, Mismatch{Row: i, Offload: offload[i], Missing: true})
	}
	for i := n; i < len(reference); i++ {
		out = append(out, Mismatch{Row: i, Reference: reference[i], Missing: true})
	}
	return out
}

// MaxAbsDiff returns max_i |a[i]-b[i]|, the signed discrepancy that Compare
// does not look at.
func MaxAbsDiff(a, b []float32) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	return floats.Distance(widen(a[:n]), widen(b[:n]), math.Inf(1))
}

func widen(s []float32) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}
