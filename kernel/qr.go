package kernel

import "gonum.org/v1/gonum/mat"

// QR wraps gonum's mat.QR, exposing the two operations the sequential and
// associative engines both need: reduce a matrix to an upper-trapezoidal
// factor, and apply the resulting Q^T to a companion right-hand side.
type QR struct {
	fact mat.QR
	rows int
	cols int
}

// Factorize reduces a to an upper-trapezoidal factor and keeps the
// compact Householder reflectors for ApplyQTo.
func Factorize(a mat.Matrix) *QR {
	r, c := a.Dims()
	q := &QR{rows: r, cols: c}
	q.fact.Factorize(a)
	return q
}

// R returns the full rows x cols upper-trapezoidal factor; it is not
// truncated, so callers that need the square leading block Chop it
// themselves.
func (q *QR) R() *mat.Dense {
	r := &mat.Dense{}
	q.fact.RTo(r)
	return r
}

// ApplyQTo computes x <- Q^T * x, materializing Q via QTo since mat.QR
// does not export its internal apply-without-materializing routine.
func (q *QR) ApplyQTo(x *mat.Dense) {
	qm := &mat.Dense{}
	q.fact.QTo(qm)
	out := &mat.Dense{}
	out.Mul(qm.T(), x)
	x.Reset()
	x.CloneFrom(out)
}
