package associative

import (
	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/kernel"
)

// zeroIfNil treats a step's absent e/J (left nil by buildFilteringElement
// whenever that step has no observation) as the zero matrix of the given
// shape: a step that observes nothing contributes no linearized
// correction term, which is the natural reading of the reference's
// element->e = NULL / element->J = NULL (its matrix library's NULL-as-
// operand semantics for this case aren't in the retrieved source).
func zeroIfNil(m *mat.Dense, rows, cols int) *mat.Dense {
	if m != nil {
		return m
	}
	return kernel.Zeros(rows, cols)
}

// filteringOp ports filteringAssociativeOperation: combines two adjacent
// filtering elements si (earlier) and sj (later) into the single element
// representing both steps' contribution, so that a left-to-right prefix
// scan over per-step elements yields each step's filtered (A, b, Z, e, J).
func filteringOp(si, sj *filterElement) *filterElement {
	if si == nil {
		return sj
	}
	if sj == nil {
		return si
	}

	ni, _ := si.b.Dims()
	nj, _ := sj.b.Dims()
	eye := kernel.Identity(ni)

	siJ := zeroIfNil(si.j, ni, ni)
	siE := zeroIfNil(si.e, ni, 1)
	sjJ := zeroIfNil(sj.j, nj, nj)
	sjE := zeroIfNil(sj.e, nj, 1)

	siZsjJ := kernel.Multiply(si.z, sjJ)
	eyePlusSiZSjJ := kernel.Clone(eye)
	eyePlusSiZSjJ.Add(eyePlusSiZSjJ, siZsjJ)

	sjAT := sj.a.T()
	otherT := kernel.Clone(eyePlusSiZSjJ.T())
	xT := kernel.MLDivide(otherT, sjAT)
	x := kernel.Clone(xT.T())

	sjJsiZ := kernel.Multiply(sjJ, si.z)
	eyePlusSjJSiZ := kernel.Clone(eye)
	eyePlusSjJSiZ.Add(eyePlusSjJSiZ, sjJsiZ)

	other2T := kernel.Clone(eyePlusSjJSiZ.T())
	yT := kernel.MLDivide(other2T, si.a)
	y := kernel.Clone(yT.T())

	out := &filterElement{dimension: sj.dimension}
	out.a = kernel.Multiply(x, si.a)

	siZsje := kernel.Multiply(si.z, sjE)
	tmp := kernel.Clone(siZsje)
	tmp.Add(tmp, si.b)
	b := kernel.Multiply(x, tmp)
	b.Add(b, sj.b)
	out.b = b

	xsiZ := kernel.Multiply(x, si.z)
	sjAT2 := sj.a.T()
	xsiZAT := kernel.Multiply(xsiZ, sjAT2)
	z := kernel.Clone(xsiZAT)
	z.Add(z, sj.z)
	out.z = z

	sjJsiB := kernel.Multiply(sjJ, si.b)
	diff := kernel.Clone(sjE)
	diff.Sub(diff, sjJsiB)
	ySjeMinus := kernel.Multiply(y, diff)
	e := kernel.Clone(ySjeMinus)
	e.Add(e, siE)
	out.e = e

	sjJsiA := kernel.Multiply(sjJ, si.a)
	ysjJsiA := kernel.Multiply(y, sjJsiA)
	j := kernel.Clone(ysjJsiA)
	j.Add(j, siJ)
	out.j = j

	return out
}

// smoothingOp ports smoothingAssociativeOperation: combines accumulated
// smoothing element si (representing the boundary side, nearer the last
// step) with the next element sj further toward the first step, so that
// folding right-to-left over per-step elements yields each step's
// smoothed (E, g, L).
func smoothingOp(si, sj *smoothElement) *smoothElement {
	if si == nil {
		return sj
	}
	if sj == nil {
		return si
	}

	e := kernel.Multiply(sj.e, si.e)

	sjEsig := kernel.Multiply(sj.e, si.g)
	g := kernel.Clone(sjEsig)
	g.Add(g, sj.g)

	sjET := sj.e.T()
	sjEsiL := kernel.Multiply(sj.e, si.l)
	sjEsiLsjET := kernel.Multiply(sjEsiL, sjET)
	l := kernel.Clone(sjEsiLsjET)
	l.Add(l, sj.l)

	return &smoothElement{e: e, g: g, l: l}
}
