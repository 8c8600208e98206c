// Package cp provides a CP (Candecomp/Parafac) tensor container.
//
// A Tensor of N modes and R components stores a weight vector of length R
// and one factor matrix U_n of shape (I_n, R) per mode. Element
// (i_1, ..., i_N) equals sum_r w_r * prod_n U_n[i_n, r].
//
// Tensors are value-like: New and Clone copy their inputs, and none of the
// decomposition packages write into a tensor they were given.
package cp

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/iderr"
)

type Tensor struct {
	weights []float64
	factors []*mat.Dense
}

// New builds a tensor from weights and factor matrices. Inputs are copied.
func New(weights []float64, factors []*mat.Dense) (*Tensor, error) {
	if err := validate(weights, factors); err != nil {
		return nil, err
	}
	t := &Tensor{
		weights: append([]float64(nil), weights...),
		factors: make([]*mat.Dense, len(factors)),
	}
	for n, u := range factors {
		t.factors[n] = mat.DenseCopyOf(u)
	}
	return t, nil
}

func validate(weights []float64, factors []*mat.Dense) error {
	if len(factors) == 0 {
		return iderr.Invalid("cp.New", "tensor needs at least one mode")
	}
	r := len(weights)
	if r == 0 {
		return iderr.Invalid("cp.New", "tensor needs at least one component")
	}
	for n, u := range factors {
		if u == nil {
			return iderr.Invalid("cp.New", "factor %d is nil", n)
		}
		rows, cols := u.Dims()
		if rows == 0 {
			return iderr.Invalid("cp.New", "factor %d has no rows", n)
		}
		if cols != r {
			return iderr.Invalid("cp.New", "factor %d has %d columns, want %d", n, cols, r)
		}
	}
	return nil
}

// Modes returns N.
func (t *Tensor) Modes() int { return len(t.factors) }

// Rank returns the number of components R.
func (t *Tensor) Rank() int { return len(t.weights) }

// Dims returns I_1, ..., I_N.
func (t *Tensor) Dims() []int {
	dims := make([]int, len(t.factors))
	for n, u := range t.factors {
		dims[n], _ = u.Dims()
	}
	return dims
}

// Factor returns the factor matrix of mode n. The matrix is shared with the
// tensor and must be treated as read-only.
func (t *Tensor) Factor(n int) *mat.Dense { return t.factors[n] }

// SetFactor replaces the factor of mode n with a copy of u.
func (t *Tensor) SetFactor(n int, u *mat.Dense) error {
	if n < 0 || n >= len(t.factors) {
		return iderr.Invalid("cp.SetFactor", "mode %d out of range [0,%d)", n, len(t.factors))
	}
	if u == nil {
		return iderr.Invalid("cp.SetFactor", "nil factor")
	}
	rows, cols := u.Dims()
	if rows == 0 || cols != t.Rank() {
		return iderr.Invalid("cp.SetFactor", "factor is %dx%d, want Ix%d", rows, cols, t.Rank())
	}
	t.factors[n] = mat.DenseCopyOf(u)
	return nil
}

// Weights returns a copy of the weight vector.
func (t *Tensor) Weights() []float64 { return append([]float64(nil), t.weights...) }

// Weight returns w_r.
func (t *Tensor) Weight(r int) float64 { return t.weights[r] }

// SetWeights replaces the weight vector with a copy of w.
func (t *Tensor) SetWeights(w []float64) error {
	if len(w) != t.Rank() {
		return iderr.Invalid("cp.SetWeights", "got %d weights, want %d", len(w), t.Rank())
	}
	t.weights = append(t.weights[:0:0], w...)
	return nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	c, _ := New(t.weights, t.factors)
	return c
}

// Scaled returns a copy whose weights are multiplied by c.
func (t *Tensor) Scaled(c float64) *Tensor {
	s := t.Clone()
	for r := range s.weights {
		s.weights[r] *= c
	}
	return s
}

// At evaluates a single element.
func (t *Tensor) At(idx ...int) float64 {
	if len(idx) != len(t.factors) {
		panic("cp: index arity mismatch")
	}
	var sum float64
	for r, w := range t.weights {
		p := w
		for n, u := range t.factors {
			p *= u.At(idx[n], r)
		}
		sum += p
	}
	return sum
}

// Unfold returns the mode-1 unfolding of the full tensor, an
// I_1 x (I_2 * ... * I_N) matrix whose column index runs over
// (i_2, ..., i_N) with i_2 fastest. For a single-mode tensor the result
// is an I_1 x 1 column.
//
// Unfold materializes the full tensor and is meant for small inputs,
// tests and export.
func (t *Tensor) Unfold() *mat.Dense {
	r := t.Rank()
	cols := 1
	for _, u := range t.factors[1:] {
		rows, _ := u.Dims()
		cols *= rows
	}
	kr := mat.NewDense(cols, r, nil)
	for c := 0; c < cols; c++ {
		rem := c
		for j := 0; j < r; j++ {
			kr.Set(c, j, t.weights[j])
		}
		for _, u := range t.factors[1:] {
			rows, _ := u.Dims()
			i := rem % rows
			rem /= rows
			for j := 0; j < r; j++ {
				kr.Set(c, j, kr.At(c, j)*u.At(i, j))
			}
		}
	}
	rows, _ := t.factors[0].Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Mul(t.factors[0], kr.T())
	return out
}

// Inner returns the Frobenius inner product of two tensors with equal
// dimensions, computed from factor Gram matrices without expansion.
func Inner(a, b *Tensor) (float64, error) {
	if a == nil || b == nil {
		return 0, iderr.Invalid("cp.Inner", "nil tensor")
	}
	da, db := a.Dims(), b.Dims()
	if len(da) != len(db) {
		return 0, iderr.Invalid("cp.Inner", "mode count %d != %d", len(da), len(db))
	}
	for n := range da {
		if da[n] != db[n] {
			return 0, iderr.Invalid("cp.Inner", "mode %d size %d != %d", n, da[n], db[n])
		}
	}
	h := mat.NewDense(a.Rank(), b.Rank(), nil)
	for i := 0; i < a.Rank(); i++ {
		for j := 0; j < b.Rank(); j++ {
			h.Set(i, j, 1)
		}
	}
	var g mat.Dense
	for n := range a.factors {
		g.Mul(a.factors[n].T(), b.factors[n])
		h.MulElem(h, &g)
	}
	wa := mat.NewVecDense(a.Rank(), a.Weights())
	wb := mat.NewVecDense(b.Rank(), b.Weights())
	return mat.Inner(wa, h, wb), nil
}

// Norm returns the Frobenius norm of the full tensor.
func (t *Tensor) Norm() float64 {
	v, _ := Inner(t, t)
	return math.Sqrt(math.Max(v, 0))
}

// RelativeError returns ||ref - approx||_F / ||ref||_F.
func RelativeError(ref, approx *Tensor) (float64, error) {
	rr, err := Inner(ref, ref)
	if err != nil {
		return 0, err
	}
	ra, err := Inner(ref, approx)
	if err != nil {
		return 0, err
	}
	aa, _ := Inner(approx, approx)
	if rr == 0 {
		return 0, iderr.Invalid("cp.RelativeError", "reference tensor is zero")
	}
	return math.Sqrt(math.Max(rr-2*ra+aa, 0) / rr), nil
}
