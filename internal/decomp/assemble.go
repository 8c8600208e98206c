package decomp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/linalg"
)

// AssembleTensor maps a component ID (J, P) of t back onto a CP tensor of
// rank len(J): factor columns J are copied from every mode and the weights
// become alpha_r = w[J_r] * sum_c P[r, c].
func AssembleTensor(t *cp.Tensor, j []int, p mat.Matrix) (*cp.Tensor, error) {
	const op = "decomp.AssembleTensor"
	if t == nil {
		return nil, iderr.Invalid(op, "nil tensor")
	}
	if err := checkInterp(op, j, p, t.Rank()); err != nil {
		return nil, err
	}
	factors := make([]*mat.Dense, t.Modes())
	for n := range factors {
		u, err := linalg.SelectColumns(t.Factor(n), j)
		if err != nil {
			return nil, err
		}
		factors[n] = u
	}
	sums := linalg.RowSums(p)
	alpha := make([]float64, len(j))
	for r, c := range j {
		alpha[r] = t.Weight(c) * sums[r]
	}
	return cp.New(alpha, factors)
}

// AssembleMatrix returns the selected columns A[:, J].
func AssembleMatrix(a mat.Matrix, j []int, p mat.Matrix) (*mat.Dense, error) {
	const op = "decomp.AssembleMatrix"
	if a == nil {
		return nil, iderr.Invalid(op, "nil matrix")
	}
	_, n := a.Dims()
	if err := checkInterp(op, j, p, n); err != nil {
		return nil, err
	}
	return linalg.SelectColumns(a, j)
}

func checkInterp(op string, j []int, p mat.Matrix, n int) error {
	if p == nil {
		return iderr.Invalid(op, "nil interpolation matrix")
	}
	r, c := p.Dims()
	if r != len(j) || c != n {
		return iderr.Invalid(op, "interpolation matrix is %dx%d, want %dx%d", r, c, len(j), n)
	}
	return nil
}
