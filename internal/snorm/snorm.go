// Package snorm estimates the spectral norm of a CP tensor, the magnitude of
// its best rank-one approximation, by alternating power iteration over the
// factor matrices. The tensor is never expanded.
package snorm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/logger"
)

const (
	DefaultTol     = 1e-8
	DefaultMaxIter = 100
)

type Options struct {
	// Tol stops the iteration once a sweep changes the estimate by less
	// than Tol. Zero selects DefaultTol; it does not mean "never stop",
	// use RunToCap for that.
	Tol float64
	// MaxIter caps the number of sweeps. Zero selects DefaultMaxIter.
	MaxIter int
	// RunToCap performs all MaxIter sweeps. Converged then reports whether
	// the last sweep met Tol.
	RunToCap bool
	Init     Init
	// Log receives per-sweep estimates at debug level and a warning when
	// the cap is hit. Nil selects logger.Default().
	Log logger.Logger
}

// WithDefaults fills zero fields with their defaults.
func (o Options) WithDefaults() Options {
	if o.Tol == 0 {
		o.Tol = DefaultTol
	}
	if o.MaxIter == 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Log == nil {
		o.Log = logger.Default()
	}
	return o
}

type Result struct {
	Norm float64
	// Iterations is the number of full sweeps performed.
	Iterations int
	Converged  bool
	// Delta is the change of the estimate over the last sweep.
	Delta float64
}

// Warning returns a *iderr.ConvergenceError when the sweep cap was hit,
// and nil otherwise.
func (r *Result) Warning() error {
	if r.Converged {
		return nil
	}
	return &iderr.ConvergenceError{
		Op:         "snorm.Estimate",
		Iterations: r.Iterations,
		Estimate:   r.Norm,
		Delta:      r.Delta,
	}
}

// Estimate runs alternating power iteration on t. Modes are updated in
// order 0..N-1 within a sweep; each update uses the inner products of the
// other modes' current vectors, so later modes see the refreshed earlier
// ones. Hitting the sweep cap is not an error; see Result.Warning.
func Estimate(t *cp.Tensor, opts Options) (*Result, error) {
	const op = "snorm.Estimate"
	if t == nil {
		return nil, iderr.Invalid(op, "nil tensor")
	}
	if opts.Tol < 0 || math.IsNaN(opts.Tol) {
		return nil, iderr.Invalid(op, "tolerance %g must be positive", opts.Tol)
	}
	if opts.MaxIter < 0 {
		return nil, iderr.Invalid(op, "iteration cap %d must be positive", opts.MaxIter)
	}
	switch opts.Init {
	case FirstColumn, Mean:
	default:
		return nil, iderr.Invalid(op, "unknown init policy %v", opts.Init)
	}
	opts = opts.WithDefaults()

	modes, r := t.Modes(), t.Rank()
	w := t.Weights()

	// vecs[n] is the current unit estimate for mode n; vecs[0] is filled by
	// the first update.
	vecs := make([][]float64, modes)
	// inner[n][c] = <vecs[n], U_n[:, c]>
	inner := make([][]float64, modes)
	for n := range modes {
		rows, _ := t.Factor(n).Dims()
		vecs[n] = make([]float64, rows)
		inner[n] = make([]float64, r)
		if n == 0 {
			continue
		}
		seedVector(vecs[n], t.Factor(n), opts.Init)
		refresh(inner[n], t.Factor(n), vecs[n])
	}

	est := w[0]
	coef := make([]float64, r)
	res := &Result{}
	for res.Iterations < opts.MaxIter {
		prev := est
		for n := range modes {
			for c := range coef {
				coef[c] = w[c]
				for m := range modes {
					if m != n {
						coef[c] *= inner[m][c]
					}
				}
			}
			u := t.Factor(n)
			v := mat.NewVecDense(len(vecs[n]), vecs[n])
			v.MulVec(u, mat.NewVecDense(r, coef))
			est = floats.Norm(vecs[n], 2)
			if est > 0 {
				floats.Scale(1/est, vecs[n])
			}
			refresh(inner[n], u, vecs[n])
		}
		res.Iterations++
		res.Delta = math.Abs(prev - est)
		opts.Log.Debug("s-norm sweep", "iteration", res.Iterations, "estimate", est, "delta", res.Delta)
		if res.Delta < opts.Tol {
			res.Converged = true
			if !opts.RunToCap {
				break
			}
		} else {
			res.Converged = false
		}
	}
	res.Norm = est
	if !res.Converged {
		opts.Log.Warn("s-norm did not converge",
			"iterations", res.Iterations, "estimate", est, "delta", res.Delta, "tol", opts.Tol)
	}
	return res, nil
}

// seedVector writes the normalized init vector for factor u into dst. A
// zero seed is replaced by the first nonzero column, then by e_0.
func seedVector(dst []float64, u *mat.Dense, policy Init) {
	_, cols := u.Dims()
	switch policy {
	case Mean:
		col := make([]float64, len(dst))
		for c := range cols {
			mat.Col(col, c, u)
			floats.Add(dst, col)
		}
		floats.Scale(1/float64(cols), dst)
	default:
		mat.Col(dst, 0, u)
	}
	for c := 0; floats.Norm(dst, 2) == 0 && c < cols; c++ {
		mat.Col(dst, c, u)
	}
	nrm := floats.Norm(dst, 2)
	if nrm == 0 {
		dst[0] = 1
		return
	}
	floats.Scale(1/nrm, dst)
}

func refresh(dst []float64, u *mat.Dense, x []float64) {
	out := mat.NewVecDense(len(dst), dst)
	out.MulVec(u.T(), mat.NewVecDense(len(x), x))
}
