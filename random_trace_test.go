package kalman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
)

// randomGaussianVector draws one sample from a zero-mean Gaussian with
// the given diagonal variance, grounded on the teacher's noise.Gaussian
// (distmv.Normal sampled via a golang.org/x/exp/rand source).
func randomGaussianVector(src *rand.Rand, variance float64, n int) *mat.VecDense {
	mean := make([]float64, n)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, variance)
	}
	dist, ok := distmv.NewNormal(mean, cov, src)
	if !ok {
		panic("random_trace_test: covariance not positive definite")
	}
	sample := dist.Rand(nil)
	return mat.NewVecDense(n, sample)
}

// TestRandomTraceEquivalence replays a seeded random two-dimensional
// trajectory (Gaussian process and observation noise drawn from the
// teacher's distmv.Normal/exp-rand vocabulary) through both a sequential
// engine and the batch associative engine, checking they agree at every
// step: a randomized complement to the fixed-table rotation scenario.
func TestRandomTraceEquivalence(t *testing.T) {
	src := rand.New(rand.NewSource(42))
	const n = 8
	const dim = 2

	f := mat.NewDense(dim, dim, []float64{0.99, -0.05, 0.05, 0.99})
	g := mat.NewDense(dim, dim, []float64{1, 0, 0, 1})
	k := scalarCov2(0.02)
	c := scalarCov2(0.1)

	eqs := make([]StepEquations, n)
	state := mat.NewVecDense(dim, []float64{1, -1})
	for i := 0; i < n; i++ {
		se := StepEquations{Step: int64(i), N: dim}
		if i > 0 {
			next := mat.NewVecDense(dim, nil)
			next.MulVec(f, state)
			next.AddVec(next, randomGaussianVector(src, 0.02, dim))
			state = next
			se.H = mat.NewDense(dim, dim, []float64{1, 0, 0, 1})
			se.F = f
			se.Offset = mat.NewVecDense(dim, nil)
			se.K = k
		}
		obs := mat.NewVecDense(dim, nil)
		obs.MulVec(g, state)
		obs.AddVec(obs, randomGaussianVector(src, 0.1, dim))
		se.G = g
		se.Obs = obs
		se.C = c
		eqs[i] = se
	}

	seq, err := New(Options{Algorithm: Ultimate, CovarianceEstimates: true})
	assert.NoError(t, err)
	for _, se := range eqs {
		assert.NoError(t, seq.Evolve(se.N, se.H, se.F, se.Offset, se.K))
		assert.NoError(t, seq.Observe(se.G, se.Obs, se.C))
	}
	assert.NoError(t, seq.Smooth())

	assoc, err := NewAssociative(eqs, Options{CovarianceEstimates: true})
	assert.NoError(t, err)

	for i := 0; i < n; i++ {
		seqState, err := seq.Estimate(int64(i))
		assert.NoError(t, err)
		assocState, err := assoc.Estimate(int64(i))
		assert.NoError(t, err)
		assert.InDelta(t, seqState.AtVec(0), assocState.AtVec(0), 1e-6, "step %d x0", i)
		assert.InDelta(t, seqState.AtVec(1), assocState.AtVec(1), 1e-6, "step %d x1", i)
	}
}

func scalarCov2(variance float64) covariance.Covariance {
	return covariance.New(mat.NewDense(2, 2, []float64{variance, 0, 0, variance}), covariance.C)
}
