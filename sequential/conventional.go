package sequential

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
	"github.com/giaminhhoang/ultimate-kalman/kernel"
)

// evolveConventional and observeConventional implement the classical
// two-pass Kalman filter, grounded on the teacher's kalman/kf package
// (KF.Predict/KF.Update): predict the prior P- = F*P*F^T + Q, then
// correct with the Kalman gain K = P-*G^T*(G*P-*G^T+C)^-1. Unlike the QR
// variants this keeps explicit covariances throughout (tag C), matching
// the teacher's mat.SymDense-backed P.

func (e *Engine) evolveConventional(n int, f *mat.Dense, c *mat.VecDense, k covariance.Covariance) error {
	r := &record{n: n}
	if e.steps.Size() == 0 {
		r.logicalStep = 0
		e.current = r
		return nil
	}
	last, ok := e.steps.Last()
	if !ok {
		return fmt.Errorf("sequential: no previous step to evolve from")
	}
	r.logicalStep = last.logicalStep + 1

	if f == nil || c == nil {
		return fmt.Errorf("sequential: evolve requires F, c for step %d", r.logicalStep)
	}
	r.F = kernel.Clone(f)
	r.Q = covariance.Explicit(k)

	prior := mat.NewVecDense(n, nil)
	prior.MulVec(f, last.state)
	prior.AddVec(prior, c)

	priorCov := kernel.Multiply(f, last.covariance)
	priorCov = kernel.Multiply(priorCov, f.T())
	priorCov.Add(priorCov, r.Q)

	r.priorState = prior
	r.priorCov = priorCov

	e.current = r
	return nil
}

func (e *Engine) observeConventional(g *mat.Dense, o *mat.VecDense, c covariance.Covariance) error {
	if e.current == nil {
		return fmt.Errorf("sequential: observe called before evolve")
	}
	r := e.current

	if r.priorState == nil {
		// step 0: no evolution prior exists, so the initial estimate comes
		// purely from the first observation's whitened normal equations.
		if g == nil || o == nil {
			r.state = nanVector(r.n)
			e.steps.Append(r)
			e.current = nil
			return nil
		}
		oAsMatrix := mat.NewDense(o.Len(), 1, nil)
		oAsMatrix.Copy(o)
		wg := covariance.Weigh(c, g)
		wo := covariance.Weigh(c, oAsMatrix)
		gram := kernel.Multiply(wg.T(), wg)
		rhs := kernel.Multiply(wg.T(), wo)
		initCov := kernel.Inverse(gram)
		initState := kernel.Multiply(initCov, rhs)

		r.covariance = initCov
		r.covarianceTag = covariance.C
		state := mat.NewVecDense(r.n, nil)
		state.CloneFromVec(initState.ColView(0))
		r.state = state

		e.steps.Append(r)
		e.current = nil
		return nil
	}

	if g == nil || o == nil {
		r.state = r.priorState
		r.covariance = r.priorCov
		r.covarianceTag = covariance.C
		e.steps.Append(r)
		e.current = nil
		return nil
	}

	explicitC := covariance.Explicit(c)

	pxy := kernel.Multiply(r.priorCov, g.T())
	pyy := kernel.Multiply(g, pxy)
	pyy.Add(pyy, explicitC)

	gain := kernel.MLDivide(pyy, pxy.T())
	gain = kernel.Clone(gain.T())

	innovation := mat.NewVecDense(o.Len(), nil)
	predicted := mat.NewVecDense(o.Len(), nil)
	predicted.MulVec(g, r.priorState)
	innovation.SubVec(o, predicted)

	correction := kernel.Multiply(gain, innovation)
	newState := mat.NewVecDense(r.n, nil)
	newState.AddVec(r.priorState, correction.ColView(0))

	ident := kernel.Identity(r.n)
	gainG := kernel.Multiply(gain, g)
	joseph := kernel.Clone(ident)
	joseph.Sub(joseph, gainG)

	newCov := kernel.Multiply(joseph, r.priorCov)
	newCov = kernel.Multiply(newCov, joseph.T())

	r.state = newState
	r.covariance = newCov
	r.covarianceTag = covariance.C

	e.steps.Append(r)
	e.current = nil
	return nil
}

// smoothConventional runs the Rauch-Tung-Striebel back-pass, grounded on
// the teacher's smooth/rts package: for each step i from last-1 down to
// first, take step i+1's predicted prior (F_{i+1}*x_i + c_{i+1} and
// F_{i+1}*P_i*F_{i+1}^T + Q_{i+1}, stored by evolveConventional) and
// combine it with the smoothed estimate one step ahead via the smoothing
// gain C = P_i*F_{i+1}^T * (P-_{i+1})^-1.
func (e *Engine) smoothConventional() error {
	records := e.steps.All()
	if len(records) == 0 {
		return nil
	}

	smoothedState := make([]*mat.VecDense, len(records))
	smoothedCov := make([]*mat.Dense, len(records))

	last := len(records) - 1
	smoothedState[last] = cloneVec(records[last].state)
	smoothedCov[last] = kernel.Clone(records[last].covariance)

	for i := last - 1; i >= 0; i-- {
		cur := records[i]
		next := records[i+1]

		priorMean := next.priorState
		priorCov := next.priorCov

		gainFactor := kernel.Multiply(cur.covariance, next.F.T())
		c := kernel.MLDivide(priorCov, gainFactor.T())
		c = kernel.Clone(c.T())

		diff := mat.NewVecDense(next.n, nil)
		diff.SubVec(smoothedState[i+1], priorMean)
		correction := kernel.Multiply(c, diff)

		newState := mat.NewVecDense(cur.n, nil)
		newState.AddVec(cur.state, correction.ColView(0))

		covDiff := kernel.Clone(smoothedCov[i+1])
		covDiff.Sub(covDiff, priorCov)
		covCorrection := kernel.Multiply(c, covDiff)
		covCorrection = kernel.Multiply(covCorrection, c.T())
		newCov := kernel.Clone(cur.covariance)
		newCov.Add(newCov, covCorrection)

		smoothedState[i] = newState
		smoothedCov[i] = newCov
	}

	for i, r := range records {
		r.state = smoothedState[i]
		if e.covarianceEstimates {
			r.covariance = smoothedCov[i]
		}
		r.covarianceTag = covariance.C
	}
	return nil
}
