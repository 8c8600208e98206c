package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/iderr"
)

// Interp is a column interpolative decomposition A ≈ A[:, J] * P.
type Interp struct {
	// J holds the selected column indices in selection order.
	J []int
	// P is the len(J) x n interpolation matrix. P[:, J] is the identity.
	P *mat.Dense
	// Rank is the numerical rank of the factored matrix when known.
	Rank int
	// Swaps counts the column exchanges performed by the strong RRQR loop.
	Swaps int
}

// InterpFromQR builds the ID of rank k from a pivoted QR whose leading k x k
// block of R is nonsingular: T = R11^{-1} R12 and P = [I_k | T], un-permuted.
func InterpFromQR(r *mat.Dense, perm []int, k int) (*Interp, error) {
	_, n := r.Dims()
	p := mat.NewDense(k, n, nil)
	for i := 0; i < k; i++ {
		p.Set(i, perm[i], 1)
	}
	if k < n {
		t, err := SolveUpper(r, k, r.Slice(0, k, k, n))
		if err != nil {
			return nil, err
		}
		for j := k; j < n; j++ {
			for i := 0; i < k; i++ {
				p.Set(i, perm[j], t.At(i, j-k))
			}
		}
	}
	return &Interp{J: append([]int(nil), perm[:k]...), P: p}, nil
}

// StrongRRQR computes a rank-k column ID of a with the Gu-Eisenstat strong
// rank-revealing QR. Starting from a column pivoted QR, leading and trailing
// columns are exchanged while some |(R11^{-1}R12)_ij|^2 +
// (|row_i(R11^{-1})| * |col_j(R22)|)^2 exceeds f^2, so every entry of the
// interpolation block ends up bounded by f unless the swap cap of 4*n*k
// exchanges is reached first. f must be at least 1.
//
// k is clamped to the numerical rank of a; the clamped value is len(J).
func StrongRRQR(a mat.Matrix, k int, f float64) (*Interp, error) {
	const op = "linalg.StrongRRQR"
	m, n := a.Dims()
	if k <= 0 || k > min(m, n) {
		return nil, iderr.Invalid(op, "rank %d outside [1,%d]", k, min(m, n))
	}
	if f < 1 || math.IsNaN(f) {
		return nil, iderr.Invalid(op, "factor %g must be >= 1", f)
	}
	qr, err := FactorizePivoted(a)
	if err != nil {
		return nil, err
	}
	rank := qr.Rank(-1)
	k = min(k, rank)
	if k == 0 {
		return nil, &iderr.InstabilityError{Op: op, Rank: 0, Reason: "matrix is numerically zero"}
	}
	perm := append([]int(nil), qr.Perm...)
	if k == n {
		out, err := InterpFromQR(qr.R, perm, k)
		if err != nil {
			return nil, err
		}
		out.Rank = rank
		return out, nil
	}

	r := qr.R
	swaps := 0
	maxSwaps := 4 * n * k
	for swaps < maxSwaps {
		i, j, ok, err := strongViolation(r, k, f)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		perm[i], perm[k+j] = perm[k+j], perm[i]
		r = factorizeUnpivoted(permuteColumns(a, perm))
		swaps++
	}

	out, err := InterpFromQR(r, perm, k)
	if err != nil {
		return nil, err
	}
	out.Rank = rank
	out.Swaps = swaps
	return out, nil
}

// strongViolation returns the leading/trailing pair with the largest
// exchange gain when that gain exceeds f^2.
func strongViolation(r *mat.Dense, k int, f float64) (int, int, bool, error) {
	rows, n := r.Dims()
	ab, err := SolveUpper(r, k, r.Slice(0, k, k, n))
	if err != nil {
		return 0, 0, false, err
	}
	inv, err := InverseUpper(r, k)
	if err != nil {
		return 0, 0, false, err
	}
	rowInv := make([]float64, k)
	for i := 0; i < k; i++ {
		rowInv[i] = mat.Norm(inv.RowView(i), 2)
	}
	gamma := make([]float64, n-k)
	if rows > k {
		r22 := r.Slice(k, rows, k, n)
		for j := range gamma {
			gamma[j] = mat.Norm(r22.(*mat.Dense).ColView(j), 2)
		}
	}

	best, bi, bj := f*f, -1, -1
	for i := 0; i < k; i++ {
		for j := 0; j < n-k; j++ {
			g := rowInv[i] * gamma[j]
			v := ab.At(i, j)*ab.At(i, j) + g*g
			if v > best {
				best, bi, bj = v, i, j
			}
		}
	}
	return bi, bj, bi >= 0, nil
}

func permuteColumns(a mat.Matrix, perm []int) *mat.Dense {
	m, _ := a.Dims()
	out := mat.NewDense(m, len(perm), nil)
	for j, c := range perm {
		for i := 0; i < m; i++ {
			out.Set(i, j, a.At(i, c))
		}
	}
	return out
}
