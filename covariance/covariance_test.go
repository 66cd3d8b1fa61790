package covariance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/kernel"
)

func TestWeighTagW(t *testing.T) {
	w := kernel.FromRowMajor(2, 2, []float64{2, 0, 0, 3})
	a := kernel.Identity(2)
	weighed := Weigh(New(w, W), a)
	assert.Equal(t, 2.0, weighed.At(0, 0))
	assert.Equal(t, 3.0, weighed.At(1, 1))
}

func TestWeighTagDiag(t *testing.T) {
	d := mat.NewDense(2, 1, []float64{2, 4})
	a := kernel.Identity(2)
	weighed := Weigh(New(d, Dw), a)
	assert.Equal(t, 2.0, weighed.At(0, 0))
	assert.Equal(t, 4.0, weighed.At(1, 1))
}

func TestRoundTripWeightForm(t *testing.T) {
	// A weight-form covariance W satisfies W^T*W = cov^-1; Explicit must
	// recover the underlying covariance from it.
	w := kernel.FromRowMajor(2, 2, []float64{3, 1, 0, 2})
	cov := New(w, W)

	explicitCov := Explicit(cov)
	gram := kernel.Multiply(w.T(), w)
	prod := kernel.Multiply(gram, explicitCov)

	assert.InDelta(t, 1.0, prod.At(0, 0), 1e-8)
	assert.InDelta(t, 0.0, prod.At(0, 1), 1e-8)
	assert.InDelta(t, 1.0, prod.At(1, 1), 1e-8)
}

func TestExplicitTagC(t *testing.T) {
	c := kernel.FromRowMajor(2, 2, []float64{5, 1, 1, 5})
	out := Explicit(New(c, C))
	assert.Equal(t, 5.0, out.At(0, 0))
}

func TestWeighTagCFoldsThroughCholesky(t *testing.T) {
	c := kernel.FromRowMajor(2, 2, []float64{4, 0, 0, 9})
	a := kernel.Identity(2)
	weighed := Weigh(New(c, C), a)
	// factor is diag(2,3); solving by its transpose against I gives diag(1/2,1/3)
	assert.InDelta(t, 0.5, weighed.At(0, 0), 1e-9)
	assert.InDelta(t, 1.0/3.0, weighed.At(1, 1), 1e-9)
}

func TestUnknownTagPanics(t *testing.T) {
	m := kernel.Identity(2)
	assert.Panics(t, func() {
		Weigh(New(m, Tag(99)), m)
	})
}
