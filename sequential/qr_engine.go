package sequential

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
	"github.com/giaminhhoang/ultimate-kalman/kernel"
)

// evolveQR and observeQR implement the incremental block-bidiagonal QR
// elimination shared by the Ultimate and OddEven variants, grounded
// line-for-line on kalman_evolve/kalman_observe in ultimatekalman.c. The
// two variants differ only in how Smooth solves the resulting
// block-bidiagonal system (see smooth_ultimate.go / smooth_oddeven.go).

func (e *Engine) evolveQR(n int, h, f *mat.Dense, c *mat.VecDense, k covariance.Covariance) error {
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

	if h == nil || f == nil || c == nil {
		return fmt.Errorf("sequential: evolve requires H, F, c for step %d", r.logicalStep)
	}

	cAsMatrix := mat.NewDense(c.Len(), 1, nil)
	cAsMatrix.Copy(c)

	wh := covariance.Weigh(k, h)
	wf := covariance.Weigh(k, f)
	wc := covariance.Weigh(k, cAsMatrix)
	kernel.Scale(-1.0, wf)

	var a, b, y *mat.Dense
	if last.Rdiag != nil {
		zRows, _ := last.Rdiag.Dims()
		a = kernel.VConcat(last.Rdiag, wf)
		b = kernel.VConcat(kernel.Zeros(zRows, n), wh)
		y = kernel.VConcat(last.y, wc)
	} else {
		a = kernel.Clone(wf)
		b = kernel.Clone(wh)
		y = kernel.Clone(wc)
	}

	qr := kernel.Factorize(a)
	qr.ApplyQTo(b)
	qr.ApplyQTo(y)
	aFactored := qr.R()

	nPrev := last.n
	bRows, bCols := b.Dims()
	yRows, yCols := y.Dims()
	if bRows > nPrev {
		r.Rbar = kernel.SubMatrix(b, nPrev, bRows-nPrev, 0, bCols)
		r.ybar = kernel.SubMatrix(y, nPrev, yRows-nPrev, 0, yCols)
	}

	aRows, aCols := aFactored.Dims()
	chopRows := minInt(aRows, nPrev)

	last.Rdiag = kernel.Chop(aFactored, chopRows, aCols)
	last.Rsupdiag = kernel.Chop(b, minInt(bRows, nPrev), bCols)
	last.y = kernel.Chop(y, minInt(yRows, nPrev), yCols)
	kernel.Triu(last.Rdiag)

	e.current = r
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func cloneOrNil(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return kernel.Clone(m)
}

func (e *Engine) observeQR(g *mat.Dense, o *mat.VecDense, c covariance.Covariance) error {
	if e.current == nil {
		return fmt.Errorf("sequential: observe called before evolve")
	}
	r := e.current
	n := r.n

	var a, y *mat.Dense
	if g != nil && o != nil {
		oAsMatrix := mat.NewDense(o.Len(), 1, nil)
		oAsMatrix.Copy(o)
		wg := covariance.Weigh(c, g)
		wo := covariance.Weigh(c, oAsMatrix)
		a = kernel.VConcat(r.Rbar, wg)
		y = kernel.VConcat(r.ybar, wo)
	} else {
		a = cloneOrNil(r.Rbar)
		y = cloneOrNil(r.ybar)
	}

	if a == nil {
		// No evolution redundancy carried into this step (Rbar/ybar both
		// nil) and no observation either: this step's sub-problem is
		// underdetermined. Per the reference's silent-NaN convention
		// (kalman_observe leaves Rdiag/y/state NULL rather than erroring),
		// fill the NaN sentinel and let Estimate/Covariance surface it.
		r.state = nanVector(n)
		e.steps.Append(r)
		e.current = nil
		return nil
	}

	aRows, aCols := a.Dims()
	if aRows >= aCols {
		qr := kernel.Factorize(a)
		qr.ApplyQTo(y)
		a = qr.R()
	}

	aRows, aCols = a.Dims()
	yRows, yCols := y.Dims()
	a = kernel.Chop(a, minInt(aRows, n), aCols)
	y = kernel.Chop(y, minInt(yRows, n), yCols)

	r.Rdiag = a
	r.y = y
	kernel.Triu(r.Rdiag)

	rows, _ := r.Rdiag.Dims()
	if rows == n {
		solved := kernel.TriSolve(r.Rdiag, r.y)
		state := mat.NewVecDense(n, nil)
		state.CloneFromVec(solved.ColView(0))
		r.state = state
		r.covariance = kernel.Clone(r.Rdiag)
		r.covarianceTag = covariance.W
	} else {
		r.state = nanVector(n)
	}

	e.steps.Append(r)
	e.current = nil
	return nil
}
