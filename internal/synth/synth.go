// Package synth generates reproducible synthetic inputs: random CP tensors
// and low-rank dense matrices.
package synth

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/iderr"
)

type CPOptions struct {
	Dims    []int
	Weights []float64
	// ZeroRows is the fraction of factor rows forced to zero in every mode.
	ZeroRows float64
	// Raw keeps Gaussian factor columns unnormalized.
	Raw bool
}

// CP draws a CP tensor with Gaussian factors. Columns are normalized to unit
// length unless o.Raw is set.
func CP(seed uint64, o CPOptions) (*cp.Tensor, error) {
	if len(o.Dims) == 0 || len(o.Weights) == 0 {
		return nil, iderr.Invalid("synth.CP", "need at least one mode and one weight")
	}
	if o.ZeroRows < 0 || o.ZeroRows >= 1 {
		return nil, iderr.Invalid("synth.CP", "zero-row fraction %g outside [0,1)", o.ZeroRows)
	}
	r := len(o.Weights)
	factors := make([]*mat.Dense, len(o.Dims))
	for n, dim := range o.Dims {
		if dim <= 0 {
			return nil, iderr.Invalid("synth.CP", "mode %d size %d must be positive", n, dim)
		}
		rng := rand.New(rand.NewPCG(seed, uint64(n)))
		u := mat.NewDense(dim, r, nil)
		for i := 0; i < dim; i++ {
			if o.ZeroRows > 0 && rng.Float64() < o.ZeroRows {
				continue
			}
			for j := 0; j < r; j++ {
				u.Set(i, j, rng.NormFloat64())
			}
		}
		if !o.Raw {
			normalizeColumns(u)
		}
		factors[n] = u
	}
	return cp.New(o.Weights, factors)
}

func normalizeColumns(u *mat.Dense) {
	rows, cols := u.Dims()
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, u)
		nrm := floats.Norm(col, 2)
		if nrm == 0 {
			continue
		}
		floats.Scale(1/nrm, col)
		u.SetCol(j, col)
	}
}

// GeometricWeights returns r weights start, start*ratio, start*ratio^2, ...
func GeometricWeights(r int, start, ratio float64) []float64 {
	w := make([]float64, r)
	for i := range w {
		w[i] = start * math.Pow(ratio, float64(i))
	}
	return w
}

// LowRank returns an m x n matrix of rank at most k, A = X*Y with Gaussian
// X (m x k) and Y (k x n), plus optional i.i.d. noise of the given scale.
func LowRank(seed uint64, m, n, k int, noise float64) (*mat.Dense, error) {
	if m <= 0 || n <= 0 || k <= 0 {
		return nil, iderr.Invalid("synth.LowRank", "dimensions %dx%d rank %d must be positive", m, n, k)
	}
	rng := rand.New(rand.NewPCG(seed, 0))
	x := gaussian(rng, m, k)
	y := gaussian(rng, k, n)
	var a mat.Dense
	a.Mul(x, y)
	if noise > 0 {
		e := gaussian(rng, m, n)
		e.Scale(noise, e)
		a.Add(&a, e)
	}
	return &a, nil
}

func gaussian(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}
