// Package gen produces the synthetic inputs of a benchmark run: a random
// square COO matrix and the dense x and y vectors.
package gen

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/qrv0/spmv/internal/sparse"
)

// PPM is the density denominator (parts per million).
const PPM = 1_000_000

var (
	ErrInvalidSize    = errors.New("matrix size must be positive")
	ErrInvalidDensity = errors.New("density must be within [0, 1000000] ppm")
)

// Generator draws matrices and vectors from one seeded source, so a seed
// fully determines the inputs of a run.
type Generator struct {
	rng *rand.Rand
}

func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// TargetNonzeros returns round(n*n*ppm/1e6).
func TargetNonzeros(n int, densityPPM uint64) int {
	return int(math.Round(float64(n) * float64(n) * float64(densityPPM) / PPM))
}

// Matrix returns an n x n COO matrix with TargetNonzeros(n, densityPPM)
// entries. Coordinates are drawn independently, so repeats are possible and
// are kept; values are uniform in [0,1).
func (g *Generator) Matrix(n int, densityPPM uint64) (*sparse.COO, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	if densityPPM > PPM {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDensity, densityPPM)
	}
	nnz := TargetNonzeros(n, densityPPM)
	m := sparse.NewCOO(n, n)
	m.Entries = make([]sparse.Entry, 0, nnz)
	for i := 0; i < nnz; i++ {
		m.Append(g.rng.Intn(n), g.rng.Intn(n), g.rng.Float32())
	}
	return m, nil
}

// Vectors returns x (numCols) and y (numRows), uniform in [0,1).
func (g *Generator) Vectors(numCols, numRows int) (x, y []float32) {
	x = make([]float32, numCols)
	for i := range x {
		x[i] = g.rng.Float32()
	}
	y = make([]float32, numRows)
	for i := range y {
		y[i] = g.rng.Float32()
	}
	return x, y
}
