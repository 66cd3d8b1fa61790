package associative

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
	"github.com/giaminhhoang/ultimate-kalman/parallel"
)

// Smooth runs the whole-batch associative filter+smoother over equations
// and returns one Result per step, ported from kalman_smooth_associative:
// build every step's filtering element, fold them left-to-right via a
// prefix scan (filteringOp) to get each step's filtered state/covariance,
// then build every step's smoothing element and fold them right-to-left
// via a second prefix scan (smoothingOp) to get the final smoothed
// state/covariance. nthreads <= 0 means unlimited parallelism; blocksize
// <= 0 selects parallel.DefaultBlocksize.
func Smooth(equations []Equation, nthreads, blocksize int) ([]Result, error) {
	n := len(equations)
	if n == 0 {
		return nil, nil
	}
	nthreads, blocksize = parallel.SetLimits(nthreads, blocksize)

	if n == 1 {
		return []Result{seedOnlyStep(equations[0])}, nil
	}

	elements := buildFilteringElements(equations, nthreads, blocksize)

	filtered := parallel.PrefixScan(elements[1:], filteringOp, nthreads, blocksize)
	for j := 1; j < n; j++ {
		elements[j].state = filtered[j-1].b
		elements[j].covariance = filtered[j-1].z
	}

	smoothElements := buildSmoothingElements(elements, equations, nthreads, blocksize)
	reversed := make([]*smoothElement, n)
	for i, el := range smoothElements {
		reversed[n-1-i] = el
	}
	smoothed := parallel.PrefixScan(reversed, smoothingOp, nthreads, blocksize)

	results := make([]Result, n)
	for j := 0; j < n; j++ {
		sm := smoothed[n-1-j]
		results[j] = Result{
			State:         vecFromCol(sm.g),
			Covariance:    sm.l,
			CovarianceTag: covariance.C,
		}
	}
	return results, nil
}

func seedOnlyStep(eq Equation) Result {
	m0, p0, ok := seedStepZero(eq)
	if !ok {
		state := mat.NewVecDense(eq.N, nil)
		cov := mat.NewDense(eq.N, eq.N, nil)
		for i := 0; i < eq.N; i++ {
			state.SetVec(i, math.NaN())
			for j := 0; j < eq.N; j++ {
				cov.Set(i, j, math.NaN())
			}
		}
		return Result{State: state, Covariance: cov, CovarianceTag: covariance.C}
	}
	return Result{State: vecFromCol(m0), Covariance: p0, CovarianceTag: covariance.C}
}

func vecFromCol(m *mat.Dense) *mat.VecDense {
	rows, _ := m.Dims()
	out := mat.NewVecDense(rows, nil)
	out.CloneFromVec(m.ColView(0))
	return out
}
