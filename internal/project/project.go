// Package project builds the sketched projection Y of a CP tensor or a
// dense matrix.
//
// For a CP tensor with weights w and factors U_1..U_N,
//
//	Y = w ∘ (S_1 U_1) ⊙ (S_2 U_2) ⊙ ... ⊙ (S_N U_N)
//
// where each S_n is an independent l x I_n sketch, ⊙ is the Hadamard product
// and w scales the columns. Y is l x R regardless of the mode sizes.
package project

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/linalg"
	"github.com/samcharles93/cpid/internal/sketch"
)

type Options struct {
	Operator sketch.Operator
	// Seed is the call seed; mode n draws from sketch.StreamSeed(Seed, n).
	Seed uint64
	// Workers bounds the number of modes sketched concurrently.
	// Zero or negative selects GOMAXPROCS.
	Workers int
}

func (o Options) workers(modes int) int {
	w := o.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return max(1, min(w, modes))
}

// Tensor returns the l x R sketched projection of t. Modes are sketched
// concurrently and combined in mode order.
func Tensor(ctx context.Context, t *cp.Tensor, l int, opts Options) (*mat.Dense, error) {
	if t == nil {
		return nil, iderr.Invalid("project.Tensor", "nil tensor")
	}
	if l <= 0 {
		return nil, iderr.Invalid("project.Tensor", "sketch dimension %d must be positive", l)
	}
	if err := opts.Operator.Validate(); err != nil {
		return nil, err
	}

	modes := t.Modes()
	products := make([]*mat.Dense, modes)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers(modes))
	for n := 0; n < modes; n++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := sketchFactor(t.Factor(n), l, sketch.StreamSeed(opts.Seed, n), opts.Operator)
			if err != nil {
				return err
			}
			products[n] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	y := linalg.Ones(l, t.Rank())
	for _, p := range products {
		y.MulElem(y, p)
	}
	linalg.ScaleColumns(y, t.Weights())
	return y, nil
}

// Matrix returns Y = S*A for a single l x m sketch drawn from stream 0 of
// opts.Seed, so a one-mode tensor with unit weights and factor A yields the
// same Y as Matrix(A).
func Matrix(a mat.Matrix, l int, opts Options) (*mat.Dense, error) {
	if a == nil {
		return nil, iderr.Invalid("project.Matrix", "nil matrix")
	}
	if l <= 0 {
		return nil, iderr.Invalid("project.Matrix", "sketch dimension %d must be positive", l)
	}
	if err := opts.Operator.Validate(); err != nil {
		return nil, err
	}
	return sketchFactor(a, l, sketch.StreamSeed(opts.Seed, 0), opts.Operator)
}

func sketchFactor(u mat.Matrix, l int, seed uint64, op sketch.Operator) (*mat.Dense, error) {
	m, _ := u.Dims()
	var active []bool
	if op.SparseAware {
		active = linalg.NonzeroRows(u)
	}
	s, err := op.Generate(l, m, seed, active)
	if err != nil {
		return nil, err
	}
	return s.Apply(u)
}
