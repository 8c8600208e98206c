// Package id extracts a column interpolative decomposition Y ≈ Y[:, J] * P
// from a small sketched matrix Y.
package id

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/linalg"
)

// DefaultFactor is the strong RRQR entry bound used when Options.Factor is zero.
const DefaultFactor = 2.0

type Options struct {
	Strategy Strategy
	// Factor bounds |P_ij| on the strong RRQR path. Zero selects DefaultFactor.
	Factor float64
}

func (o Options) factor() float64 {
	if o.Factor == 0 {
		return DefaultFactor
	}
	return o.Factor
}

// Result is a column ID of rank len(J).
type Result struct {
	// J lists the selected columns of Y; entries are distinct and in [0, n).
	J []int
	// P is the len(J) x n interpolation matrix.
	P *mat.Dense
	// Requested is the rank the caller asked for.
	Requested int
	// Rank is the numerical rank of Y.
	Rank int
	// Clamped is set when len(J) < Requested.
	Clamped  bool
	Strategy Strategy
	// Swaps counts strong RRQR exchanges.
	Swaps int
}

// K returns the rank actually delivered.
func (r *Result) K() int { return len(r.J) }

// Extract computes a rank-k ID of the l x n matrix y. k must satisfy
// 1 <= k <= l. When y is numerically rank deficient the returned rank is
// lowered to its numerical rank and Result.Clamped is set; it is not an
// error. A numerically zero y, or a leading block that cannot be solved,
// yields an *iderr.InstabilityError.
func Extract(y mat.Matrix, k int, opts Options) (*Result, error) {
	const op = "id.Extract"
	if y == nil {
		return nil, iderr.Invalid(op, "nil sketch")
	}
	l, n := y.Dims()
	if l == 0 || n == 0 {
		return nil, iderr.Invalid(op, "empty %dx%d sketch", l, n)
	}
	if k <= 0 {
		return nil, iderr.Invalid(op, "rank %d must be positive", k)
	}
	if k > l {
		return nil, iderr.Invalid(op, "rank %d exceeds sketch dimension %d", k, l)
	}

	var (
		res *Result
		err error
	)
	switch opts.Strategy {
	case ColumnPivotedQR:
		res, err = extractPivoted(y, min(k, n))
	case StrongRRQR:
		f := opts.factor()
		if f < 1 {
			return nil, iderr.Invalid(op, "strong RRQR factor %g must be >= 1", f)
		}
		res, err = extractStrong(y, min(k, n), f)
	default:
		return nil, iderr.Invalid(op, "unknown strategy %v", opts.Strategy)
	}
	if err != nil {
		var ie *iderr.InstabilityError
		if errors.As(err, &ie) {
			return nil, &iderr.InstabilityError{Op: op, Rank: ie.Rank, Reason: ie.Reason}
		}
		return nil, err
	}
	res.Requested = k
	res.Clamped = res.K() < k
	res.Strategy = opts.Strategy
	return res, nil
}

func extractPivoted(y mat.Matrix, k int) (*Result, error) {
	qr, err := linalg.FactorizePivoted(y)
	if err != nil {
		return nil, err
	}
	rank := qr.Rank(-1)
	kp := min(k, rank)
	if kp == 0 {
		return nil, &iderr.InstabilityError{Op: "id.extractPivoted", Rank: 0, Reason: "sketch is numerically zero"}
	}
	interp, err := linalg.InterpFromQR(qr.R, qr.Perm, kp)
	if err != nil {
		return nil, err
	}
	return &Result{J: interp.J, P: interp.P, Rank: rank}, nil
}

func extractStrong(y mat.Matrix, k int, f float64) (*Result, error) {
	interp, err := linalg.StrongRRQR(y, k, f)
	if err != nil {
		return nil, err
	}
	return &Result{J: interp.J, P: interp.P, Rank: interp.Rank, Swaps: interp.Swaps}, nil
}
