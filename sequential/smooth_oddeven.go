package sequential

import (
	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/kernel"
)

// smoothOddEven solves the same back-substitution recurrence as
// smoothUltimate's state pass,
//
//	state[i] = Rdiag[i]^-1*y[i] - Rdiag[i]^-1*Rsupdiag[i]*state[i+1]
//	         = b[i] - a[i]*state[i+1],   state[last] = b[last]
//
// but via odd-even cyclic reduction instead of a strictly serial
// right-to-left sweep: adjacent (even, odd) pairs are folded into a
// single reduced relation over the even-indexed positions, halving the
// chain length at each level down to a base case, then the dropped
// odd-indexed unknowns are recovered in a final pass from the original
// per-step a/b. The solution of a linear recurrence does not depend on
// how its combine steps are grouped, so this produces the same state
// estimates as the serial sweep up to floating-point rounding. The
// covariance pass is identical to Ultimate's.
//
// This is an original Go derivation of the recurrence the "oddeven"
// variant is named for, not a port of cited C: the pack's retrieved
// sources include rotation.c's CLI dispatch string selecting an
// "oddeven" algorithm enum, but no cyclic-reduction implementation
// backing that enum was retrieved into _examples/.
func (e *Engine) smoothOddEven() error {
	records := e.steps.All()
	n := len(records)
	if n == 0 {
		return nil
	}

	a := make([]*mat.Dense, n) // a[i] = Rdiag[i]^-1*Rsupdiag[i]; nil at the last index (no successor)
	b := make([]*mat.VecDense, n)

	for i, r := range records {
		rows, _ := r.y.Dims()
		yVec := mat.NewVecDense(rows, nil)
		for row := 0; row < rows; row++ {
			yVec.SetVec(row, r.y.At(row, 0))
		}
		bMat := mat.NewDense(rows, 1, nil)
		bMat.Copy(yVec)
		kernel.MutateTriSolve(r.Rdiag, bMat)
		bi := mat.NewVecDense(rows, nil)
		bi.CloneFromVec(bMat.ColView(0))
		b[i] = bi

		if i < n-1 {
			a[i] = kernel.TriSolve(r.Rdiag, r.Rsupdiag)
		}
	}

	states := cyclicReduceSolve(a, b)
	for i, r := range records {
		r.state = states[i]
	}

	if !e.covarianceEstimates {
		return nil
	}
	return covariancePass(records)
}

// cyclicReduceSolve solves state[i] = b[i] - a[i]*state[i+1] for
// i = 0..n-2, with state[n-1] = b[n-1] (a[n-1] is nil), via odd-even
// cyclic reduction.
func cyclicReduceSolve(a []*mat.Dense, b []*mat.VecDense) []*mat.VecDense {
	n := len(b)
	if n == 1 {
		return []*mat.VecDense{cloneVec(b[0])}
	}

	var reducedA []*mat.Dense
	var reducedB []*mat.VecDense
	keptIndices := make([]int, 0, (n+1)/2)

	i := 0
	for i+1 < n {
		ai, bi := a[i], b[i]
		aNext, bNext := a[i+1], b[i+1]

		newB := combineB(bi, ai, bNext)
		var newA *mat.Dense
		if aNext != nil {
			// state[i] = b[i] - a[i]*state[i+1]
			//          = b[i] - a[i]*(b[i+1] - a[i+1]*state[i+2])
			//          = (b[i]-a[i]*b[i+1]) - (-a[i]*a[i+1])*state[i+2]
			newA = kernel.Multiply(ai, aNext)
			kernel.Scale(-1.0, newA)
		}

		reducedA = append(reducedA, newA)
		reducedB = append(reducedB, newB)
		keptIndices = append(keptIndices, i)
		i += 2
	}
	if i == n-1 {
		// odd leftover: the final index carries through the level
		// unchanged (it has no successor at this level either).
		reducedA = append(reducedA, a[i])
		reducedB = append(reducedB, b[i])
		keptIndices = append(keptIndices, i)
	}

	reducedStates := cyclicReduceSolve(reducedA, reducedB)

	states := make([]*mat.VecDense, n)
	for k, idx := range keptIndices {
		states[idx] = reducedStates[k]
	}

	// Recover the dropped (odd-position) unknowns: state[idx] = b[idx] -
	// a[idx]*state[idx+1], using the original a/b at this level; idx+1 is
	// always a kept, already-resolved position.
	for idx := 0; idx < n; idx++ {
		if states[idx] != nil {
			continue
		}
		if a[idx] == nil {
			states[idx] = cloneVec(b[idx])
			continue
		}
		states[idx] = combineB(b[idx], a[idx], states[idx+1])
	}

	return states
}

func combineB(bi *mat.VecDense, ai *mat.Dense, next *mat.VecDense) *mat.VecDense {
	if ai == nil {
		return cloneVec(bi)
	}
	prod := kernel.Multiply(ai, next)
	out := mat.NewVecDense(bi.Len(), nil)
	out.SubVec(bi, prod.ColView(0))
	return out
}

func cloneVec(v *mat.VecDense) *mat.VecDense {
	out := &mat.VecDense{}
	out.CloneFromVec(v)
	return out
}
