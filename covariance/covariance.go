// Package covariance models a covariance matrix together with the tag
// that says how it is represented, and the two total operations every
// engine needs over that representation: whitening a companion matrix
// (Weigh) and recovering the explicit covariance (Explicit).
//
// Grounded on the teacher's noise package (Gaussian/Zero/None, each
// exposing Cov()/Mean()), generalized here from "noise source" to
// "tagged covariance" since the estimation engines need the covariance
// algebra directly, not just samples from it.
package covariance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/kernel"
)

// Tag identifies how a Covariance's matrix represents the covariance.
type Tag int

const (
	// W: upper-triangular weight matrix; W^T*W = cov^-1.
	W Tag = iota
	// U: upper-triangular Cholesky-like factor; U^T*U = cov (triangular
	// solve to whiten).
	U
	// F: same representation as U, distinguished only by provenance
	// (started from an explicit covariance and was factored).
	F
	// w: diagonal weight, stored as an n x 1 column vector.
	Dw
	// C: explicit covariance matrix.
	C
)

func (t Tag) String() string {
	switch t {
	case W:
		return "W"
	case U:
		return "U"
	case F:
		return "F"
	case Dw:
		return "w"
	case C:
		return "C"
	default:
		return fmt.Sprintf("Tag(%d)", int(t))
	}
}

// Covariance pairs a matrix with the tag describing its representation.
type Covariance struct {
	Matrix mat.Matrix
	Tag    Tag
}

// New wraps a matrix with its representation tag.
func New(m mat.Matrix, tag Tag) Covariance {
	return Covariance{Matrix: m, Tag: tag}
}

// Weigh produces W*A such that (W*A)^T(W*A) = A^T cov^-1 A in the least-
// squares whitening sense, dispatching on the covariance's tag.
func Weigh(cov Covariance, a *mat.Dense) *mat.Dense {
	switch cov.Tag {
	case W:
		return kernel.Multiply(cov.Matrix, a)
	case U, F:
		return kernel.TriSolve(cov.Matrix, a)
	case Dw:
		return weighDiagonal(cov.Matrix, a)
	case C:
		// factor^T*factor = cov, so factor^-T*A is the whitened A.
		factor := cholesky(cov.Matrix)
		return kernel.MLDivide(factor.T(), a)
	default:
		panic(fmt.Sprintf("covariance.Weigh: unknown tag %v", cov.Tag))
	}
}

func weighDiagonal(diag mat.Matrix, a *mat.Dense) *mat.Dense {
	rows, cols := a.Dims()
	dr, _ := diag.Dims()
	if dr != rows {
		panic(fmt.Sprintf("covariance.Weigh: diagonal weight has %d rows, A has %d", dr, rows))
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		d := diag.At(i, 0)
		for j := 0; j < cols; j++ {
			out.Set(i, j, d*a.At(i, j))
		}
	}
	return out
}

// Explicit returns the explicit covariance matrix for cov, dispatching on
// its tag.
func Explicit(cov Covariance) *mat.Dense {
	switch cov.Tag {
	case W:
		gram := kernel.Multiply(cov.Matrix.T(), cov.Matrix)
		return kernel.Inverse(gram)
	case U, F:
		gram := kernel.Multiply(cov.Matrix, cov.Matrix.T())
		return kernel.Inverse(gram)
	case Dw:
		rows, _ := cov.Matrix.Dims()
		out := mat.NewDense(rows, rows, nil)
		for i := 0; i < rows; i++ {
			d := cov.Matrix.At(i, 0)
			out.Set(i, i, 1/(d*d))
		}
		return out
	case C:
		return kernel.Clone(cov.Matrix)
	default:
		panic(fmt.Sprintf("covariance.Explicit: unknown tag %v", cov.Tag))
	}
}

// cholesky returns the upper Cholesky factor R such that R^T*R = cov, via
// plain row-by-row elimination (the same hand-written-arithmetic idiom
// kernel.TriSolve uses for back-substitution, rather than an unconfirmed
// mat.Cholesky surface). Weigh's tag-C case whitens with it by solving
// R^T*X = A.
func cholesky(cov mat.Matrix) *mat.Dense {
	n, _ := cov.Dims()
	r := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		sum := cov.At(j, j)
		for k := 0; k < j; k++ {
			sum -= r.At(k, j) * r.At(k, j)
		}
		if sum <= 0 {
			panic("covariance.Weigh: covariance is not positive definite")
		}
		diag := math.Sqrt(sum)
		r.Set(j, j, diag)
		for i := j + 1; i < n; i++ {
			s := cov.At(j, i)
			for k := 0; k < j; k++ {
				s -= r.At(k, j) * r.At(k, i)
			}
			r.Set(j, i, s/diag)
		}
	}
	return r
}
