package sequential

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

// runScalarWalk drives engine through a short scalar random-walk-with-
// observations trace: x[0] observed directly, then x[i] = x[i-1] + 1
// observed directly at every subsequent step, for steps 0..k-1.
func runScalarWalk(t *testing.T, e *Engine, k int) {
	t.Helper()
	h := mat.NewDense(1, 1, []float64{1})
	g := mat.NewDense(1, 1, []float64{1})
	for i := 0; i < k; i++ {
		if i == 0 {
			assert.NoError(t, e.Evolve(1, nil, nil, nil, covariance.Covariance{}))
		} else {
			f := mat.NewDense(1, 1, []float64{1})
			c := mat.NewVecDense(1, []float64{1})
			assert.NoError(t, e.Evolve(1, h, f, c, scalarCov(0.01)))
		}
		o := mat.NewVecDense(1, []float64{float64(i)})
		assert.NoError(t, e.Observe(g, o, scalarCov(0.04)))
	}
}

func TestSequentialFilterMatchesObservationsAcrossVariants(t *testing.T) {
	for _, variant := range []Variant{Ultimate, Conventional, OddEven} {
		e := New(variant, true)
		runScalarWalk(t, e, 5)
		assert.NoError(t, e.Smooth())
		for i := int64(0); i < 5; i++ {
			state, err := e.Estimate(i)
			assert.NoError(t, err)
			assert.InDelta(t, float64(i), state.AtVec(0), 0.5, "variant %d step %d", variant, i)
		}
	}
}

func TestSmoothIdempotence(t *testing.T) {
	for _, variant := range []Variant{Ultimate, Conventional, OddEven} {
		e := New(variant, true)
		runScalarWalk(t, e, 6)
		assert.NoError(t, e.Smooth())
		first := make([]float64, 6)
		for i := int64(0); i < 6; i++ {
			s, err := e.Estimate(i)
			assert.NoError(t, err)
			first[i] = s.AtVec(0)
		}
		assert.NoError(t, e.Smooth())
		for i := int64(0); i < 6; i++ {
			s, err := e.Estimate(i)
			assert.NoError(t, err)
			assert.InDelta(t, first[i], s.AtVec(0), 1e-8, "variant %d step %d not idempotent", variant, i)
		}
	}
}

func TestRollbackAndRedo(t *testing.T) {
	for _, variant := range []Variant{Ultimate, Conventional, OddEven} {
		e := New(variant, true)
		runScalarWalk(t, e, 4)
		original, err := e.Estimate(3)
		assert.NoError(t, err)

		assert.NoError(t, e.Rollback(3))
		assert.Equal(t, int64(2), e.Latest())

		h := mat.NewDense(1, 1, []float64{1})
		g := mat.NewDense(1, 1, []float64{1})
		f := mat.NewDense(1, 1, []float64{1})
		c := mat.NewVecDense(1, []float64{1})
		_ = h
		assert.NoError(t, e.Evolve(1, h, f, c, scalarCov(0.01)))
		o := mat.NewVecDense(1, []float64{3})
		assert.NoError(t, e.Observe(g, o, scalarCov(0.04)))

		redone, err := e.Estimate(3)
		assert.NoError(t, err)
		assert.InDelta(t, original.AtVec(0), redone.AtVec(0), 1e-6, "variant %d redo mismatch", variant)
	}
}

func TestSingleStepBoundary(t *testing.T) {
	for _, variant := range []Variant{Ultimate, Conventional, OddEven} {
		e := New(variant, true)
		h := mat.NewDense(1, 1, []float64{1})
		g := mat.NewDense(1, 1, []float64{1})
		assert.NoError(t, e.Evolve(1, h, nil, nil, covariance.Covariance{}))
		o := mat.NewVecDense(1, []float64{5})
		assert.NoError(t, e.Observe(g, o, scalarCov(0.04)))
		assert.NoError(t, e.Smooth())

		assert.Equal(t, int64(0), e.Earliest())
		assert.Equal(t, int64(0), e.Latest())
		state, err := e.Estimate(-1)
		assert.NoError(t, err)
		assert.InDelta(t, 5.0, state.AtVec(0), 0.5, "variant %d", variant)
	}
}

func TestForgetDropsOldSteps(t *testing.T) {
	e := New(Ultimate, true)
	runScalarWalk(t, e, 5)
	assert.NoError(t, e.Forget(2))
	assert.Equal(t, int64(3), e.Earliest())
	assert.Equal(t, int64(4), e.Latest())
	_, err := e.Estimate(1)
	assert.Error(t, err)
}
