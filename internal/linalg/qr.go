// Package linalg holds the dense rank-revealing primitives used by the ID
// pipeline: QR with column pivoting, numerical rank, triangular solves and
// a strong rank-revealing QR.
//
// All routines are thin layers over gonum's LAPACK implementation and never
// modify their inputs.
package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/gonum"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/iderr"
)

var lapack = gonum.Implementation{}

// PivotedQR is the result of A*Perm = Q*R. Only R and the permutation are kept.
type PivotedQR struct {
	// R is the min(m,n) x n upper trapezoidal factor.
	R *mat.Dense
	// Perm[j] is the column of A that was moved to position j.
	Perm []int

	m, n int
}

// FactorizePivoted computes a QR factorization with column pivoting.
// The magnitudes on the diagonal of R are non-increasing.
func FactorizePivoted(a mat.Matrix) (*PivotedQR, error) {
	m, n := a.Dims()
	if m == 0 || n == 0 {
		return nil, iderr.Invalid("linalg.FactorizePivoted", "empty %dx%d matrix", m, n)
	}
	work := mat.DenseCopyOf(a)
	raw := work.RawMatrix()

	jpvt := make([]int, n)
	for i := range jpvt {
		jpvt[i] = -1
	}
	tau := make([]float64, min(m, n))
	query := []float64{0}
	lapack.Dgeqp3(m, n, raw.Data, raw.Stride, jpvt, tau, query, -1)
	ws := make([]float64, int(query[0]))
	lapack.Dgeqp3(m, n, raw.Data, raw.Stride, jpvt, tau, ws, len(ws))

	return &PivotedQR{
		R:    upperTrapezoid(raw, m, n),
		Perm: jpvt,
		m:    m,
		n:    n,
	}, nil
}

// factorizeUnpivoted computes R of A = Q*R for the columns of a in order.
func factorizeUnpivoted(a mat.Matrix) *mat.Dense {
	m, n := a.Dims()
	work := mat.DenseCopyOf(a)
	raw := work.RawMatrix()
	tau := make([]float64, min(m, n))
	query := []float64{0}
	lapack.Dgeqrf(m, n, raw.Data, raw.Stride, tau, query, -1)
	ws := make([]float64, int(query[0]))
	lapack.Dgeqrf(m, n, raw.Data, raw.Stride, tau, ws, len(ws))
	return upperTrapezoid(raw, m, n)
}

func upperTrapezoid(raw blas64.General, m, n int) *mat.Dense {
	k := min(m, n)
	r := mat.NewDense(k, n, nil)
	for i := 0; i < k; i++ {
		for j := i; j < n; j++ {
			r.Set(i, j, raw.Data[i*raw.Stride+j])
		}
	}
	return r
}

// RankTolerance returns the default threshold on |R_jj|: max(m,n)*eps*|R_00|.
func (q *PivotedQR) RankTolerance() float64 {
	return float64(max(q.m, q.n)) * eps * math.Abs(q.R.At(0, 0))
}

// Rank returns the number of diagonal entries of R exceeding tol in
// magnitude. A negative tol selects RankTolerance.
func (q *PivotedQR) Rank(tol float64) int {
	if tol < 0 {
		tol = q.RankTolerance()
	}
	k, _ := q.R.Dims()
	for j := 0; j < k; j++ {
		if math.Abs(q.R.At(j, j)) <= tol {
			return j
		}
	}
	return k
}

const eps = 0x1p-52

// SolveUpper solves R11 * X = B where R11 is the leading k x k block of the
// upper triangular r. Singular or badly conditioned blocks are reported as
// ErrNumericalInstability.
func SolveUpper(r *mat.Dense, k int, b mat.Matrix) (*mat.Dense, error) {
	tri := mat.NewTriDense(k, mat.Upper, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			tri.SetTri(i, j, r.At(i, j))
		}
	}
	for i := 0; i < k; i++ {
		if tri.At(i, i) == 0 {
			return nil, &iderr.InstabilityError{Op: "linalg.SolveUpper", Rank: i, Reason: "zero pivot"}
		}
	}
	var x mat.Dense
	if err := x.Solve(tri, b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, &iderr.InstabilityError{Op: "linalg.SolveUpper", Rank: k, Reason: err.Error()}
		}
		return nil, err
	}
	if !allFinite(&x) {
		return nil, &iderr.InstabilityError{Op: "linalg.SolveUpper", Rank: k, Reason: "non-finite solution"}
	}
	return &x, nil
}

// InverseUpper returns the inverse of the leading k x k block of r.
func InverseUpper(r *mat.Dense, k int) (*mat.Dense, error) {
	id := mat.NewDiagDense(k, nil)
	for i := 0; i < k; i++ {
		id.SetDiag(i, 1)
	}
	return SolveUpper(r, k, id)
}

func allFinite(m *mat.Dense) bool {
	raw := m.RawMatrix()
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+cols] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
