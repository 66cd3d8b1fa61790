// Package associative implements the parallel Kalman filter/smoother via
// prefix scans over a non-commutative associative operator (Sarkka &
// Garcia-Fernandez 2021), ported from build_filtering_element_new,
// build_smoothing_element_new, filteringAssociativeOperation, and
// smoothingAssociativeOperation in kalman_associative_smoother.c. Unlike
// the sequential engine it processes a whole batch of step equations at
// once: there is no incremental Evolve/Observe/Rollback surface here.
package associative

import (
	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
)

// Equation is one step's evolution/observation equations, the same
// shape as the root package's StepEquations but declared locally to
// avoid an import cycle (kalman imports associative, not vice versa).
type Equation struct {
	N int
	F *mat.Dense // nil at step 0
	C *mat.VecDense
	K covariance.Covariance

	G *mat.Dense // nil if step i has no observation
	O *mat.VecDense
	Cov covariance.Covariance
}

// Result is one step's filtered-then-smoothed estimate.
type Result struct {
	State         *mat.VecDense
	Covariance    *mat.Dense
	CovarianceTag covariance.Tag
}

// filterElement is the per-step filtering operand: (A, b, Z, e, J),
// combined left-to-right by filteringOp. Dimension mirrors matrix_rows(b)
// in the reference.
type filterElement struct {
	dimension int
	a         *mat.Dense
	b         *mat.Dense
	z         *mat.Dense
	e         *mat.Dense
	j         *mat.Dense

	// state/covariance hold the step's filtered estimate: element 0's are
	// seeded by buildFilteringElement's i==1 special case (mirroring
	// elements[0]->state/covariance in the reference), every later
	// element's are filled by Smooth from the filtering scan, and
	// buildSmoothingElements reads them all.
	state      *mat.Dense
	covariance *mat.Dense
}

// smoothElement is the per-step smoothing operand: (E, g, L), combined
// right-to-left by smoothingOp.
type smoothElement struct {
	e *mat.Dense
	g *mat.Dense
	l *mat.Dense
}
