// Package kalman is the root of the ultimate-kalman module: the
// caller-facing StepEquations/Estimate vocabulary, the Engine interface
// every algorithm implements, and the New/NewAssociative constructors
// that dispatch to the sequential (ultimate/conventional/oddeven) or
// associative engine, grounded on the teacher's filter.Filter-over-
// Model/Propagator/Observer and kalman.Kalman interface-over-
// implementation pattern.
package kalman

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/giaminhhoang/ultimate-kalman/associative"
	"github.com/giaminhhoang/ultimate-kalman/covariance"
	"github.com/giaminhhoang/ultimate-kalman/sequential"
)

// StepEquations is the caller-owned per-step equation record: the
// evolution equation H*x[i] = F*x[i-1] + Offset + noise(K), and the
// observation equation G*x[i] = Obs + noise(C). H, F, Offset, and K are
// nil/zero for step 0 (no evolution equation). G, Obs, and C are nil/zero
// for a step with no observation.
type StepEquations struct {
	Step int64
	N    int

	H, F   *mat.Dense
	Offset *mat.VecDense
	K      covariance.Covariance

	G   *mat.Dense
	Obs *mat.VecDense
	C   covariance.Covariance
}

// Estimate is one step's state/covariance estimate.
type Estimate struct {
	State         *mat.VecDense
	Covariance    mat.Matrix
	CovarianceTag covariance.Tag
}

// Algorithm selects which engine New constructs.
type Algorithm int

const (
	Ultimate Algorithm = iota
	Conventional
	OddEven
	Associative
)

// Options configures engine construction. NThreads and Blocksize only
// affect NewAssociative: they are forwarded to associative.Smooth, which
// resolves them via parallel.SetLimits and caps every errgroup.Group the
// two scan phases spawn (NThreads <= 0 means unlimited). The sequential
// engines (Ultimate/Conventional/OddEven) never spawn a goroutine, so
// both fields are no-ops there.
type Options struct {
	Algorithm           Algorithm
	NThreads            int
	Blocksize           int
	CovarianceEstimates bool
}

// ErrUnsupportedOnAssociative is returned by Evolve/Observe/Rollback/
// Forget on an engine built via NewAssociative: only the sequential
// engines support on-line, incremental use.
var ErrUnsupportedOnAssociative = errors.New("kalman: operation not supported on the associative engine")

// Engine is the uniform interface over every algorithm this module
// implements.
type Engine interface {
	Evolve(n int, H, F *mat.Dense, c *mat.VecDense, K covariance.Covariance) error
	Observe(G *mat.Dense, o *mat.VecDense, C covariance.Covariance) error
	Smooth() error
	Rollback(step int64) error
	Forget(step int64) error
	Estimate(step int64) (*mat.VecDense, error)
	Covariance(step int64) (mat.Matrix, covariance.Tag, error)
	Earliest() int64
	Latest() int64
}

// New constructs an incremental engine for opts.Algorithm. Associative is
// not a valid choice here (it has no incremental Evolve/Observe surface);
// use NewAssociative instead.
func New(opts Options) (Engine, error) {
	switch opts.Algorithm {
	case Ultimate:
		return sequentialEngine{sequential.New(sequential.Ultimate, opts.CovarianceEstimates)}, nil
	case Conventional:
		return sequentialEngine{sequential.New(sequential.Conventional, opts.CovarianceEstimates)}, nil
	case OddEven:
		return sequentialEngine{sequential.New(sequential.OddEven, opts.CovarianceEstimates)}, nil
	case Associative:
		return nil, fmt.Errorf("kalman: New does not support Associative, use NewAssociative")
	default:
		return nil, fmt.Errorf("kalman: unknown algorithm %d", opts.Algorithm)
	}
}

// NewAssociative runs the whole-batch associative filter+smoother over
// equations and wraps the result behind Engine, with Evolve/Observe/
// Rollback/Forget all returning ErrUnsupportedOnAssociative.
func NewAssociative(equations []StepEquations, opts Options) (Engine, error) {
	eqs := make([]associative.Equation, len(equations))
	for i, se := range equations {
		eqs[i] = associative.Equation{
			N:   se.N,
			F:   se.F,
			C:   se.Offset,
			K:   se.K,
			G:   se.G,
			O:   se.Obs,
			Cov: se.C,
		}
	}
	results, err := associative.Smooth(eqs, opts.NThreads, opts.Blocksize)
	if err != nil {
		return nil, err
	}
	if !opts.CovarianceEstimates {
		for i := range results {
			results[i].Covariance = nil
		}
	}

	steps := make([]int64, len(equations))
	for i, se := range equations {
		steps[i] = se.Step
	}
	return &associativeEngine{steps: steps, results: results}, nil
}

type sequentialEngine struct {
	e *sequential.Engine
}

func (s sequentialEngine) Evolve(n int, h, f *mat.Dense, c *mat.VecDense, k covariance.Covariance) error {
	return s.e.Evolve(n, h, f, c, k)
}
func (s sequentialEngine) Observe(g *mat.Dense, o *mat.VecDense, c covariance.Covariance) error {
	return s.e.Observe(g, o, c)
}
func (s sequentialEngine) Smooth() error                  { return s.e.Smooth() }
func (s sequentialEngine) Rollback(step int64) error      { return s.e.Rollback(step) }
func (s sequentialEngine) Forget(step int64) error        { return s.e.Forget(step) }
func (s sequentialEngine) Estimate(step int64) (*mat.VecDense, error) {
	return s.e.Estimate(step)
}
func (s sequentialEngine) Covariance(step int64) (mat.Matrix, covariance.Tag, error) {
	return s.e.Covariance(step)
}
func (s sequentialEngine) Earliest() int64 { return s.e.Earliest() }
func (s sequentialEngine) Latest() int64   { return s.e.Latest() }

// associativeEngine wraps a completed batch associative.Smooth result
// behind Engine; every mutating method is unsupported.
type associativeEngine struct {
	steps   []int64
	results []associative.Result
}

func (a *associativeEngine) Evolve(int, *mat.Dense, *mat.Dense, *mat.VecDense, covariance.Covariance) error {
	return ErrUnsupportedOnAssociative
}
func (a *associativeEngine) Observe(*mat.Dense, *mat.VecDense, covariance.Covariance) error {
	return ErrUnsupportedOnAssociative
}
func (a *associativeEngine) Smooth() error        { return nil }
func (a *associativeEngine) Rollback(int64) error { return ErrUnsupportedOnAssociative }
func (a *associativeEngine) Forget(int64) error   { return ErrUnsupportedOnAssociative }

func (a *associativeEngine) indexOf(step int64) (int, error) {
	if step < 0 {
		return len(a.steps) - 1, nil
	}
	for i, s := range a.steps {
		if s == step {
			return i, nil
		}
	}
	return -1, fmt.Errorf("kalman: no step %d", step)
}

func (a *associativeEngine) Estimate(step int64) (*mat.VecDense, error) {
	i, err := a.indexOf(step)
	if err != nil {
		return nil, err
	}
	return a.results[i].State, nil
}

func (a *associativeEngine) Covariance(step int64) (mat.Matrix, covariance.Tag, error) {
	i, err := a.indexOf(step)
	if err != nil {
		return nil, 0, err
	}
	return a.results[i].Covariance, a.results[i].CovarianceTag, nil
}

func (a *associativeEngine) Earliest() int64 {
	if len(a.steps) == 0 {
		return -1
	}
	return a.steps[0]
}

func (a *associativeEngine) Latest() int64 {
	if len(a.steps) == 0 {
		return -1
	}
	return a.steps[len(a.steps)-1]
}
