package sequential

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
)

// Evolve advances the engine by one step given the evolution equation
// h*x[i] = F*x[i-1] + c + noise(K). H, F, c, and K may all be nil only
// for the very first step (no evolution equation, state pinned purely by
// the first observation).
func (e *Engine) Evolve(n int, h, f *mat.Dense, c *mat.VecDense, k covariance.Covariance) error {
	switch e.variant {
	case Conventional:
		return e.evolveConventional(n, f, c, k)
	case Ultimate, OddEven:
		return e.evolveQR(n, h, f, c, k)
	default:
		return fmt.Errorf("sequential: unknown variant %d", e.variant)
	}
}

// Observe folds an observation equation G*x[i] = o + noise(C) into the
// step opened by the most recent Evolve. G, o, and C may be nil to skip
// observing at this step (state/covariance carry the evolution prior
// forward unchanged).
func (e *Engine) Observe(g *mat.Dense, o *mat.VecDense, c covariance.Covariance) error {
	switch e.variant {
	case Conventional:
		return e.observeConventional(g, o, c)
	case Ultimate, OddEven:
		return e.observeQR(g, o, c)
	default:
		return fmt.Errorf("sequential: unknown variant %d", e.variant)
	}
}

// Smooth recomputes every retained step's state (and, if enabled,
// covariance) using all steps observed so far, in place.
func (e *Engine) Smooth() error {
	switch e.variant {
	case Conventional:
		return e.smoothConventional()
	case Ultimate:
		return e.smoothUltimate()
	case OddEven:
		return e.smoothOddEven()
	default:
		return fmt.Errorf("sequential: unknown variant %d", e.variant)
	}
}
