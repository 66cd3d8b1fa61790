package sequential

import (
	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
	"github.com/giaminhhoang/ultimate-kalman/kernel"
)

// smoothUltimate runs the two back-passes from kalman_smooth: a state
// pass substituting state[i] = Rdiag[i]^-1*(y[i] - Rsupdiag[i]*state[i+1])
// from last to first, and an optional covariance pass maintaining a
// rolling upper-triangular factor via a second QR per step.
func (e *Engine) smoothUltimate() error {
	records := e.steps.All()
	if len(records) == 0 {
		return nil
	}

	var prevState *mat.VecDense
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		yRows, _ := r.y.Dims()
		yCopy := mat.NewVecDense(yRows, nil)
		for row := 0; row < yRows; row++ {
			yCopy.SetVec(row, r.y.At(row, 0))
		}
		if i < len(records)-1 {
			correction := kernel.Multiply(r.Rsupdiag, prevState)
			yCopy.SubVec(yCopy, correction.ColView(0))
		}
		stateMat := mat.NewDense(yCopy.Len(), 1, nil)
		stateMat.Copy(yCopy)
		kernel.MutateTriSolve(r.Rdiag, stateMat)
		newState := mat.NewVecDense(yCopy.Len(), nil)
		newState.CloneFromVec(stateMat.ColView(0))
		r.state = newState
		prevState = r.state
	}

	if !e.covarianceEstimates {
		return nil
	}
	return covariancePass(records)
}

// covariancePass implements kalman_smooth's second back-pass (guarded in
// the reference by #ifndef NO_COVARIANCE_ESTIMATES): a rolling
// upper-triangular factor R, refactored at each step via [Rsupdiag[i];R]
// against [Rdiag[i];0]. Shared by Ultimate and OddEven since the state
// pass differs but the covariance recursion does not.
func covariancePass(records []*record) error {
	if len(records) == 0 {
		return nil
	}
	var rolling *mat.Dense
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if i == len(records)-1 {
			rolling = kernel.Clone(r.Rdiag)
			r.covariance = rolling
			r.covarianceTag = covariance.W
			continue
		}
		rRows, _ := rolling.Dims()
		nI, nICols := r.Rdiag.Dims()

		a := kernel.VConcat(r.Rsupdiag, rolling)
		s := kernel.VConcat(r.Rdiag, kernel.Zeros(rRows, nICols))

		qr := kernel.Factorize(a)
		qr.ApplyQTo(s)

		rolling = kernel.SubMatrix(s, nI, nI, 0, nI)
		r.covariance = rolling
		r.covarianceTag = covariance.W
	}
	return nil
}
