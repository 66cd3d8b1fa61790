// Package kernel provides the dense matrix primitives shared by every
// estimation engine: construction, sub-block extraction, concatenation,
// in-place scaling, and the products/factorizations/solves the engines
// build their recursions from. Most operations are thin compositions of
// gonum.org/v1/gonum/mat calls; Triu and the triangular solves
// (TriSolve/MutateTriSolve) are hand-written loops.
//
// Dimension mismatches and singular solves are programmer errors: they
// panic rather than return an error, matching the preconditions the
// callers in sequential and associative are expected to guarantee.
package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Zeros returns a freshly allocated r x c matrix of zeros.
func Zeros(r, c int) *mat.Dense {
	return mat.NewDense(r, c, nil)
}

// Identity returns the n x n identity matrix.
func Identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// FromRowMajor builds an r x c matrix from row-major data, matching the
// way callers in this module lay out literal test fixtures.
func FromRowMajor(r, c int, data []float64) *mat.Dense {
	return mat.NewDense(r, c, data)
}

// SubMatrix extracts the (row0, row0+rows) x (col0, col0+cols) block of m
// as an owned copy.
func SubMatrix(m *mat.Dense, row0, rows, col0, cols int) *mat.Dense {
	out := mat.NewDense(rows, cols, nil)
	out.Copy(m.Slice(row0, row0+rows, col0, col0+cols))
	return out
}

// Clone returns an owned copy of m.
func Clone(m mat.Matrix) *mat.Dense {
	out := &mat.Dense{}
	out.CloneFrom(m)
	return out
}

// CloneVec returns an owned copy of v.
func CloneVec(v mat.Vector) *mat.VecDense {
	out := &mat.VecDense{}
	out.CloneFromVec(v)
	return out
}

// VConcat stacks top above bottom. Either argument may be nil, in which
// case the other is returned unchanged (copied). A nil *mat.Dense counts
// as nil.
func VConcat(top, bottom mat.Matrix) *mat.Dense {
	if d, ok := top.(*mat.Dense); top == nil || (ok && d == nil) {
		return Clone(bottom)
	}
	if d, ok := bottom.(*mat.Dense); bottom == nil || (ok && d == nil) {
		return Clone(top)
	}
	tr, tc := top.Dims()
	br, bc := bottom.Dims()
	if tc != bc {
		panic(fmt.Sprintf("kernel.VConcat: column mismatch %d != %d", tc, bc))
	}
	out := mat.NewDense(tr+br, tc, nil)
	out.Slice(0, tr, 0, tc).(*mat.Dense).Copy(top)
	out.Slice(tr, tr+br, 0, tc).(*mat.Dense).Copy(bottom)
	return out
}

// Scale multiplies m in place by alpha.
func Scale(alpha float64, m *mat.Dense) {
	m.Scale(alpha, m)
}

// CopyInto copies src into dst, which must already have src's shape.
func CopyInto(dst *mat.Dense, src mat.Matrix) {
	dst.Copy(src)
}

// Triu zeroes the strict lower triangle of m in place.
func Triu(m *mat.Dense) {
	r, c := m.Dims()
	for i := 1; i < r; i++ {
		for j := 0; j < c && j < i; j++ {
			m.Set(i, j, 0)
		}
	}
}

// Chop returns an owned copy of m's top-left rows x cols sub-block; m
// itself is left unchanged.
func Chop(m *mat.Dense, rows, cols int) *mat.Dense {
	out := mat.NewDense(rows, cols, nil)
	out.Copy(m.Slice(0, rows, 0, cols))
	return out
}

// Multiply returns a * b as a new matrix.
func Multiply(a, b mat.Matrix) *mat.Dense {
	out := &mat.Dense{}
	out.Mul(a, b)
	return out
}

// GEMM computes c <- alpha*a*b + beta*c in place, matching the hand
// composed gemm idiom the sequential and associative engines both use
// for accumulating products.
func GEMM(alpha float64, a, b mat.Matrix, beta float64, c *mat.Dense) {
	prod := &mat.Dense{}
	prod.Mul(a, b)
	prod.Scale(alpha, prod)
	if beta == 0 {
		c.Copy(prod)
		return
	}
	c.Scale(beta, c)
	c.Add(c, prod)
}

// Inverse returns the inverse of the square matrix a. Panics if a is
// singular.
func Inverse(a mat.Matrix) *mat.Dense {
	out := &mat.Dense{}
	if err := out.Inverse(a); err != nil {
		panic(fmt.Sprintf("kernel.Inverse: singular matrix: %v", err))
	}
	return out
}

// MLDivide solves A*X = B for square A, i.e. computes A^-1 * B, matching
// the teacher's inverse-then-multiply idiom for Kalman gain computation
// rather than assuming an unconfirmed general Solve signature.
func MLDivide(a mat.Matrix, b mat.Matrix) *mat.Dense {
	inv := Inverse(a)
	return Multiply(inv, b)
}

// TriSolve computes R^-1 * B for upper-triangular R via back-substitution,
// returning a new matrix. R must be square.
func TriSolve(r mat.Matrix, b mat.Matrix) *mat.Dense {
	n, n2 := r.Dims()
	if n != n2 {
		panic(fmt.Sprintf("kernel.TriSolve: R not square: %dx%d", n, n2))
	}
	rb, cb := b.Dims()
	if rb != n {
		panic(fmt.Sprintf("kernel.TriSolve: shape mismatch: R is %dx%d, B has %d rows", n, n, rb))
	}
	out := mat.NewDense(n, cb, nil)
	out.Copy(b)
	backSubstitute(r, out)
	return out
}

// MutateTriSolve computes x <- R^-1 * x in place via back-substitution.
func MutateTriSolve(r mat.Matrix, x *mat.Dense) {
	backSubstitute(r, x)
}

func backSubstitute(r mat.Matrix, x *mat.Dense) {
	n, _ := r.Dims()
	_, cols := x.Dims()
	for col := 0; col < cols; col++ {
		for i := n - 1; i >= 0; i-- {
			sum := x.At(i, col)
			for k := i + 1; k < n; k++ {
				sum -= r.At(i, k) * x.At(k, col)
			}
			diag := r.At(i, i)
			if diag == 0 {
				panic("kernel.TriSolve: singular triangular matrix")
			}
			x.Set(i, col, sum/diag)
		}
	}
}
