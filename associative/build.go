package associative

import (
	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/covariance"
	"github.com/giaminhhoang/ultimate-kalman/kernel"
	"github.com/giaminhhoang/ultimate-kalman/parallel"
)

// buildFilteringElements ports build_filtering_element_new, one call per
// step index, fanned out across blocks via parallel.ForEachRange (the
// element-construction phase SPEC_FULL.md §5 names as one of the
// associative engine's two suspension points). Step 0 never gets A/b/Z/
// e/J (it seeds step 1's prior instead, matching the i==0 early return
// in the reference); step 1 is special-cased because it is the only step
// whose prior comes from an explicit state/covariance pair
// (elements[0].state/covariance) rather than from another filtering
// element — every goroutine below only ever writes elements[i] for its
// own i (and elements[0] exactly once, from whichever block contains
// i==1), so no two goroutines ever write the same slot.
func buildFilteringElements(equations []Equation, nthreads, blocksize int) []*filterElement {
	n := len(equations)
	elements := make([]*filterElement, n)
	for i, eq := range equations {
		elements[i] = &filterElement{dimension: eq.N}
	}

	_ = parallel.ForEachRange(n, nthreads, blocksize, func(start, end int) error {
		for i := start; i < end; i++ {
			if i == 0 {
				continue
			}
			buildFilteringElement(equations, elements, i)
		}
		return nil
	})
	return elements
}

// seedStepZero solves step 0's state/covariance directly from its
// observation's whitened normal equations, the same technique
// observeConventional uses for its step-0 special case. Needed both by
// buildFilteringElement's i==1 branch and, for the n==1 boundary, by
// Smooth directly (build_filtering_element_new's i==1 branch never runs
// when there is no step 1).
func seedStepZero(eq Equation) (state *mat.Dense, cov *mat.Dense, ok bool) {
	if eq.G == nil || eq.O == nil {
		return nil, nil, false
	}
	oAsMatrix := mat.NewDense(eq.O.Len(), 1, nil)
	oAsMatrix.Copy(eq.O)
	wg := covariance.Weigh(eq.Cov, eq.G)
	wo := covariance.Weigh(eq.Cov, oAsMatrix)
	gram := kernel.Multiply(wg.T(), wg)
	rhs := kernel.Multiply(wg.T(), wo)
	p0 := kernel.Inverse(gram)
	m0 := kernel.Multiply(p0, rhs)
	return m0, p0, true
}

func buildFilteringElement(equations []Equation, elements []*filterElement, i int) {
	eq := equations[i]
	el := elements[i]

	if i == 1 {
		if m0, p0, ok := seedStepZero(equations[0]); ok {
			elements[0].state = m0
			elements[0].covariance = p0
		}
	}

	n := eq.N
	kI := covariance.Explicit(eq.K)
	if i == 1 && elements[0].covariance != nil {
		fT := eq.F.T()
		fp0 := kernel.Multiply(eq.F, elements[0].covariance)
		fpfT := kernel.Multiply(fp0, fT)
		kI = kernel.Clone(kI)
		kI.Add(kI, fpfT)
	}

	if eq.G == nil {
		el.z = kI
		if i == 1 {
			el.a = kernel.Zeros(n, n)
			m0 := elements[0].state
			if m0 != nil {
				el.b = kernel.Multiply(eq.F, m0)
				addVecCol(el.b, eq.C)
			}
		} else {
			el.a = kernel.Clone(eq.F)
			el.b = colFromVec(eq.C)
		}
		el.e = nil
		el.j = nil
		return
	}

	gI := eq.G
	oI := eq.O
	cI := covariance.Explicit(eq.Cov)

	gIT := gI.T()
	kgT := kernel.Multiply(kI, gIT)
	gkgT := kernel.Multiply(gI, kgT)
	s := kernel.Clone(gkgT)
	s.Add(s, cI)

	sT := kernel.Clone(s.T())
	gTransInvST := kernel.MLDivide(sT, gI)
	gTransInvS := kernel.Clone(gTransInvST.T())

	k := kernel.Multiply(kI, gTransInvS)

	if i == 1 {
		el.a = kernel.Zeros(n, n)
		m0 := elements[0].state
		fIm := kernel.Multiply(eq.F, m0)
		m1 := kernel.Clone(fIm)
		addVecCol(m1, eq.C)
		gIm := kernel.Multiply(gI, m1)
		oGIm := subVecCol(oI, gIm)
		kOGIm := kernel.Multiply(k, oGIm)
		b := kernel.Clone(m1)
		b.Add(b, kOGIm)
		el.b = b

		ks := kernel.Multiply(k, s)
		kT := k.T()
		kskT := kernel.Multiply(ks, kT)
		z := kernel.Clone(kI)
		z.Sub(z, kskT)
		el.z = z
	} else {
		gf := kernel.Multiply(gI, eq.F)
		kgf := kernel.Multiply(k, gf)
		a := kernel.Clone(eq.F)
		a.Sub(a, kgf)
		el.a = a

		cAsMatrix := mat.NewDense(eq.C.Len(), 1, nil)
		cAsMatrix.Copy(eq.C)
		gIc := kernel.Multiply(gI, cAsMatrix)
		oGIc := subVecCol(oI, gIc)
		kOGIc := kernel.Multiply(k, oGIc)
		b := kernel.Clone(cAsMatrix)
		b.Add(b, kOGIc)
		el.b = b

		kg := kernel.Multiply(k, gI)
		kgkI := kernel.Multiply(kg, kI)
		z := kernel.Clone(kI)
		z.Sub(z, kgkI)
		el.z = z
	}

	cAsMatrix := mat.NewDense(eq.C.Len(), 1, nil)
	cAsMatrix.Copy(eq.C)
	gIc := kernel.Multiply(gI, cAsMatrix)
	oGIc := subVecCol(oI, gIc)
	fT := eq.F.T()
	ftg := kernel.Multiply(fT, gTransInvS)
	e := kernel.Multiply(ftg, oGIc)
	el.e = e

	gf := kernel.Multiply(gI, eq.F)
	j := kernel.Multiply(ftg, gf)
	el.j = j
}

func colFromVec(v *mat.VecDense) *mat.Dense {
	out := mat.NewDense(v.Len(), 1, nil)
	out.Copy(v)
	return out
}

func subVecCol(o *mat.VecDense, m *mat.Dense) *mat.Dense {
	out := colFromVec(o)
	out.Sub(out, m)
	return out
}

func addVecCol(m *mat.Dense, v *mat.VecDense) {
	col := colFromVec(v)
	m.Add(m, col)
}

// buildSmoothingElements ports build_smoothing_element_new: the last
// step's smoothing element has E = 0 and carries its own filtered
// state/covariance as g/L; every other step's element linearizes the
// RTS backward correction against step i+1's evolution equation. Each
// index only reads elements[i] and equations[i+1] (already fully
// computed by the filtering phase), never another index's output slot,
// so this construction phase fans out across blocks exactly like
// buildFilteringElements.
func buildSmoothingElements(elements []*filterElement, equations []Equation, nthreads, blocksize int) []*smoothElement {
	n := len(elements)
	out := make([]*smoothElement, n)
	_ = parallel.ForEachRange(n, nthreads, blocksize, func(start, end int) error {
		for i := end - 1; i >= start; i-- {
			el := elements[i]
			if i == n-1 {
				out[i] = &smoothElement{
					e: kernel.Zeros(el.dimension, el.dimension),
					g: kernel.Clone(el.state),
					l: kernel.Clone(el.covariance),
				}
				continue
			}
			x := el.state
			p := el.covariance
			next := equations[i+1]
			f := next.F
			q := covariance.Explicit(next.K)
			c := next.C

			fT := f.T()
			pfT := kernel.Multiply(p, fT)
			fpfT := kernel.Multiply(f, pfT)
			fpfTQ := kernel.Clone(fpfT)
			fpfTQ.Add(fpfTQ, q)

			pfTT := kernel.Clone(pfT.T())
			fpfTQT := kernel.Clone(fpfTQ.T())
			eT := kernel.MLDivide(fpfTQT, pfTT)
			e := kernel.Clone(eT.T())

			fx := kernel.Multiply(f, x)
			fxc := kernel.Clone(fx)
			addVecCol(fxc, c)
			eFxc := kernel.Multiply(e, fxc)
			g := kernel.Clone(x)
			g.Sub(g, eFxc)

			ef := kernel.Multiply(e, f)
			efp := kernel.Multiply(ef, p)
			l := kernel.Clone(p)
			l.Sub(l, efp)

			out[i] = &smoothElement{e: e, g: g, l: l}
		}
		return nil
	})
	return out
}
