package linalg

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/iderr"
)

// SelectColumns copies the columns idx of a into a new matrix, in order.
func SelectColumns(a mat.Matrix, idx []int) (*mat.Dense, error) {
	m, n := a.Dims()
	if len(idx) == 0 {
		return nil, iderr.Invalid("linalg.SelectColumns", "empty index set")
	}
	seen := make(map[int]struct{}, len(idx))
	for _, j := range idx {
		if j < 0 || j >= n {
			return nil, iderr.Invalid("linalg.SelectColumns", "index %d out of range [0,%d)", j, n)
		}
		if _, dup := seen[j]; dup {
			return nil, iderr.Invalid("linalg.SelectColumns", "duplicate index %d", j)
		}
		seen[j] = struct{}{}
	}
	out := mat.NewDense(m, len(idx), nil)
	for c, j := range idx {
		for i := 0; i < m; i++ {
			out.Set(i, c, a.At(i, j))
		}
	}
	return out, nil
}

// NonzeroRows reports, for each row of a, whether any entry is nonzero.
func NonzeroRows(a mat.Matrix) []bool {
	m, n := a.Dims()
	active := make([]bool, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			if a.At(i, j) != 0 {
				active[i] = true
				break
			}
		}
	}
	return active
}

// Ones returns an r x c matrix of ones.
func Ones(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(r, c, data)
}

// ScaleColumns multiplies column j of a by s[j] in place.
func ScaleColumns(a *mat.Dense, s []float64) {
	m, n := a.Dims()
	if len(s) != n {
		panic("linalg: scale length mismatch")
	}
	for i := 0; i < m; i++ {
		row := a.RawRowView(i)
		for j := range row {
			row[j] *= s[j]
		}
	}
}

// RowSums returns the sum of each row of a.
func RowSums(a mat.Matrix) []float64 {
	m, n := a.Dims()
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out[i] += a.At(i, j)
		}
	}
	return out
}

// ResidualRatio returns ||A - A[:,J]*P||_F / ||A||_F, or the absolute
// residual when A is zero.
func ResidualRatio(a mat.Matrix, j []int, p mat.Matrix) (float64, error) {
	aj, err := SelectColumns(a, j)
	if err != nil {
		return 0, err
	}
	var rec mat.Dense
	rec.Mul(aj, p)
	rec.Sub(a, &rec)
	num := mat.Norm(&rec, 2)
	den := mat.Norm(a, 2)
	if den == 0 {
		return num, nil
	}
	return num / den, nil
}
