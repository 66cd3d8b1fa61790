// Package sequential implements the three configuration variants that
// share the block-bidiagonal, single-pass structure of the sequential
// factored engine: ultimate (straight incremental QR elimination,
// grounded line-for-line on ultimatekalman.c), conventional (classical
// two-pass Kalman filter + RTS smoother, grounded on the teacher's
// kalman/kf and smooth/rts packages), and oddeven (a cyclic-reduction
// rearrangement of the same back-substitution recurrence the ultimate
// smoother runs serially).
package sequential

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
	"github.com/giaminhhoang/ultimate-kalman/step"
)

// Variant selects which elimination/smoothing strategy Engine runs.
type Variant int

const (
	// Ultimate is the straight incremental block-bidiagonal QR engine.
	Ultimate Variant = iota
	// Conventional is the classical two-pass Kalman filter + RTS smoother.
	Conventional
	// OddEven solves the same back-substitution recurrence the Ultimate
	// smoother runs serially via odd-even cyclic reduction.
	OddEven
)

// record is the per-step bookkeeping the three variants maintain. Not
// every field is populated by every variant: Rdiag/Rsupdiag/y/Rbar/ybar
// belong to Ultimate and OddEven (both QR-factored); F/Q belong to
// Conventional (it needs the evolution matrix and process covariance
// again during its RTS back-pass).
type record struct {
	logicalStep int64
	n           int

	Rdiag    *mat.Dense
	Rsupdiag *mat.Dense
	y        *mat.Dense

	Rbar *mat.Dense
	ybar *mat.Dense

	F *mat.Dense
	Q *mat.Dense

	// priorState/priorCov hold Conventional's pre-observation predicted
	// mean/covariance, kept distinct from the post-observation state/
	// covariance below so Rollback can restore the prior a step was
	// reopened at without losing the distinction between "never observed"
	// (step 0, priorState nil) and "observation rolled back".
	priorState *mat.VecDense
	priorCov   *mat.Dense

	state         *mat.VecDense
	covariance    *mat.Dense
	covarianceTag covariance.Tag
}

// Engine is the sequential factored engine, parameterized by Variant.
type Engine struct {
	variant             Variant
	steps               *step.Store[*record]
	current             *record
	covarianceEstimates bool
}

// New constructs a sequential engine of the given variant.
func New(v Variant, covarianceEstimates bool) *Engine {
	return &Engine{
		variant:             v,
		steps:               step.New[*record](),
		covarianceEstimates: covarianceEstimates,
	}
}

// Earliest returns the logical index of the oldest retained step, or -1.
func (e *Engine) Earliest() int64 {
	if e.steps.Size() == 0 {
		return -1
	}
	r, _ := e.steps.Get(e.steps.FirstIndex())
	return r.logicalStep
}

// Latest returns the logical index of the newest retained step, or -1.
func (e *Engine) Latest() int64 {
	if e.steps.Size() == 0 {
		return -1
	}
	r, _ := e.steps.Get(e.steps.LastIndex())
	return r.logicalStep
}

func nanVector(n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, math.NaN())
	}
	return v
}

// Estimate returns a copy of the state at step si (-1 meaning latest).
func (e *Engine) Estimate(si int64) (*mat.VecDense, error) {
	if e.steps.Size() == 0 {
		return nil, fmt.Errorf("sequential: empty store")
	}
	if si < 0 {
		si = e.Latest()
	}
	r, ok := e.findByLogicalStep(si)
	if !ok {
		return nil, fmt.Errorf("sequential: no step %d", si)
	}
	if r.state == nil {
		return nanVector(r.n), nil
	}
	out := &mat.VecDense{}
	out.CloneFromVec(r.state)
	return out, nil
}

// Covariance returns a copy of the posterior covariance at step si.
func (e *Engine) Covariance(si int64) (mat.Matrix, covariance.Tag, error) {
	if e.steps.Size() == 0 {
		return nil, 0, fmt.Errorf("sequential: empty store")
	}
	if si < 0 {
		si = e.Latest()
	}
	r, ok := e.findByLogicalStep(si)
	if !ok {
		return nil, 0, fmt.Errorf("sequential: no step %d", si)
	}
	if r.covariance == nil {
		out := mat.NewDense(r.n, r.n, nil)
		for i := 0; i < r.n; i++ {
			for j := 0; j < r.n; j++ {
				out.Set(i, j, math.NaN())
			}
		}
		return out, r.covarianceTag, nil
	}
	out := &mat.Dense{}
	out.CloneFrom(r.covariance)
	return out, r.covarianceTag, nil
}

func (e *Engine) findByLogicalStep(si int64) (*record, bool) {
	first := e.Earliest()
	last := e.Latest()
	if si < first || si > last {
		return nil, false
	}
	return e.steps.Get(e.steps.FirstIndex() + (si - first))
}

// Forget drops steps with logical index <= si, never the last one.
func (e *Engine) Forget(si int64) error {
	if e.steps.Size() == 0 {
		return nil
	}
	if si < 0 {
		si = e.Latest() - 1
	}
	if si > e.Latest()-1 {
		return nil
	}
	if si < e.Earliest() {
		return nil
	}
	for e.steps.Size() > 0 && e.Earliest() <= si {
		e.steps.DropFirst()
	}
	return nil
}

// Rollback drops steps with logical index > si and reopens si as the
// current in-flight step, matching kalman_rollback's retain-Rbar/ybar
// semantics.
func (e *Engine) Rollback(si int64) error {
	if e.steps.Size() == 0 {
		return nil
	}
	if si > e.Latest() {
		return nil
	}
	if si < e.Earliest() {
		return nil
	}
	for {
		r, ok := e.steps.DropLast()
		if !ok {
			break
		}
		if r.logicalStep == si {
			e.current = &record{
				logicalStep: r.logicalStep,
				n:           r.n,
				Rbar:        r.Rbar,
				ybar:        r.ybar,
				F:           r.F,
				Q:           r.Q,
				priorState:  r.priorState,
				priorCov:    r.priorCov,
			}
			break
		}
	}
	return nil
}
