package kalman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
)

// scalarCov builds a 1x1 explicit covariance (tag C) for a scalar model.
func scalarCov(variance float64) covariance.Covariance {
	return covariance.New(mat.NewDense(1, 1, []float64{variance}), covariance.C)
}

// scalarWalkEquations builds the StepEquations for a k-step scalar
// random walk with drift 1 and a direct observation at every step,
// in the exact shape NewAssociative expects (N/F/Offset/K at every
// step but 0, G/Obs/C at every step).
func scalarWalkEquations(k int) []StepEquations {
	eqs := make([]StepEquations, k)
	for i := 0; i < k; i++ {
		se := StepEquations{Step: int64(i), N: 1}
		if i > 0 {
			se.H = mat.NewDense(1, 1, []float64{1})
			se.F = mat.NewDense(1, 1, []float64{1})
			se.Offset = mat.NewVecDense(1, []float64{1})
			se.K = scalarCov(0.01)
		}
		se.G = mat.NewDense(1, 1, []float64{1})
		se.Obs = mat.NewVecDense(1, []float64{float64(i)})
		se.C = scalarCov(0.04)
		eqs[i] = se
	}
	return eqs
}

// driveScalarWalk replays scalarWalkEquations through e's incremental
// Evolve/Observe surface.
func driveScalarWalk(t *testing.T, e Engine, eqs []StepEquations) {
	t.Helper()
	for _, se := range eqs {
		assert.NoError(t, e.Evolve(se.N, se.H, se.F, se.Offset, se.K))
		assert.NoError(t, e.Observe(se.G, se.Obs, se.C))
	}
	assert.NoError(t, e.Smooth())
}

// TestEngineEquivalenceAcrossAlgorithms exercises property 1: every
// algorithm run over the same equations must agree on the smoothed
// estimate at every step, within numerical tolerance.
func TestEngineEquivalenceAcrossAlgorithms(t *testing.T) {
	const k = 5
	eqs := scalarWalkEquations(k)

	results := make(map[Algorithm][]*mat.VecDense)
	for _, algo := range []Algorithm{Ultimate, Conventional, OddEven} {
		e, err := New(Options{Algorithm: algo, CovarianceEstimates: true})
		assert.NoError(t, err)
		driveScalarWalk(t, e, eqs)
		out := make([]*mat.VecDense, k)
		for i := 0; i < k; i++ {
			s, err := e.Estimate(int64(i))
			assert.NoError(t, err)
			out[i] = s
		}
		results[algo] = out
	}

	assoc, err := NewAssociative(eqs, Options{CovarianceEstimates: true})
	assert.NoError(t, err)
	assocOut := make([]*mat.VecDense, k)
	for i := 0; i < k; i++ {
		s, err := assoc.Estimate(int64(i))
		assert.NoError(t, err)
		assocOut[i] = s
	}
	results[Associative] = assocOut

	reference := results[Ultimate]
	for _, algo := range []Algorithm{Conventional, OddEven, Associative} {
		got := results[algo]
		for i := 0; i < k; i++ {
			assert.InDelta(t, reference[i].AtVec(0), got[i].AtVec(0), 1e-6,
				"algorithm %d step %d diverges from ultimate", algo, i)
		}
	}
}
