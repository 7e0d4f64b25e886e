package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qrv0/spmv/internal/sparse"
)

func TestReferenceExample(t *testing.T) {
	coo := sparse.NewCOO(3, 3)
	coo.Append(0, 0, 2)
	coo.Append(1, 1, 3)
	coo.Append(1, 2, 1)
	m := sparse.FromCOO(coo)

	seed := []float32{0, 0, 0}
	assert.Equal(t, []float32{2, 4, 0}, Reference(m, []float32{1, 1, 1}, seed))
	assert.Equal(t, []float32{0, 0, 0}, seed)
}

func TestReferenceAccumulatesIntoSeed(t *testing.T) {
	coo := sparse.NewCOO(2, 1)
	coo.Append(0, 0, 2)
	coo.Append(0, 0, 3)
	m := sparse.FromCOO(coo)

	assert.Equal(t, []float32{5, 0}, Reference(m, []float32{1}, []float32{0, 0}))
	assert.Equal(t, []float32{11, 0.5}, Reference(m, []float32{2}, []float32{1, 0.5}))
}

func TestDiffersComparesMagnitudes(t *testing.T) {
	assert.False(t, Differs(2.5, -2.5, Tolerance))
	assert.False(t, Differs(1.0, 1.0005, Tolerance))
	assert.True(t, Differs(1.0, 1.002, Tolerance))
	assert.True(t, Differs(-1.002, 1.0, Tolerance))
	assert.True(t, Differs(1.002, 1.0, Tolerance))
}

func TestCompare(t *testing.T) {
	got := Compare([]float32{1, -2, 3, 4}, []float32{1, 2, 3.5, 4.0001}, Tolerance)
	assert.Equal(t, []Mismatch{{Row: 2, Offload: 3, Reference: 3.5}}, got)
	assert.Equal(t, "Possible error, difference greater then .001 at row 2", got[0].String())
	assert.Empty(t, Compare(nil, nil, Tolerance))
}

func TestCompareLengthMismatch(t *testing.T) {
	got := Compare([]float32{1}, []float32{1, 2, 3}, Tolerance)
	assert.Equal(t, []Mismatch{
		{Row: 1, Reference: 2, Missing: true},
		{Row: 2, Reference: 3, Missing: true},
	}, got)
	assert.Equal(t, "Possible error, no value to compare at row 1", got[0].String())

	got = Compare([]float32{1, 5}, []float32{1}, Tolerance)
	assert.Equal(t, []Mismatch{{Row: 1, Offload: 5, Missing: true}}, got)
	assert.Len(t, Compare(nil, []float32{0}, Tolerance), 1)
}

func TestMaxAbsDiff(t *testing.T) {
	assert.InDelta(t, 4.0, MaxAbsDiff([]float32{1, -2}, []float32{1, 2}), 1e-9)
	assert.Zero(t, MaxAbsDiff(nil, nil))
}
