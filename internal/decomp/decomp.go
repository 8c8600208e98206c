// Package decomp runs the sketch-and-extract interpolative decomposition of
// CP tensors and dense matrices: project to Y, extract (J, P) from Y, then
// assemble the rank-reduced result in the input's representation.
package decomp

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/id"
	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/linalg"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/project"
)

// Diagnostics describes how a decomposition went.
type Diagnostics struct {
	// SketchResidual is ||Y - Y[:,J] P||_F / ||Y||_F.
	SketchResidual float64
	Elapsed        time.Duration
}

type TensorResult struct {
	// Tensor is the rank-K() CP approximation built from components J.
	Tensor *cp.Tensor
	ID     *id.Result
	// Sketch is the l x R projection the ID was computed from.
	Sketch *mat.Dense
	Diagnostics
}

// RelativeError returns ||T - Tensor||_F / ||T||_F for the tensor t that
// was decomposed.
func (r *TensorResult) RelativeError(t *cp.Tensor) (float64, error) {
	return cp.RelativeError(t, r.Tensor)
}

type MatrixResult struct {
	// Columns holds A[:, J].
	Columns *mat.Dense
	ID      *id.Result
	Sketch  *mat.Dense
	Diagnostics
}

// Reconstruct returns A[:, J] * P.
func (r *MatrixResult) Reconstruct() *mat.Dense {
	var out mat.Dense
	out.Mul(r.Columns, r.ID.P)
	return &out
}

// Tensor computes a rank-cfg.Rank component ID of t.
func Tensor(ctx context.Context, t *cp.Tensor, cfg Config) (*TensorResult, error) {
	if t == nil {
		return nil, iderr.Invalid("decomp.Tensor", "nil tensor")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("op", "decomp.Tensor")
	start := time.Now()
	log.Debug("decomposing tensor",
		"modes", t.Modes(), "components", t.Rank(),
		"k", cfg.Rank, "l", cfg.L(), "strategy", cfg.Strategy, "sketch", cfg.Sketch.Kind)

	y, err := project.Tensor(ctx, t, cfg.L(), project.Options{
		Operator: cfg.Sketch,
		Seed:     cfg.Seed,
		Workers:  cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	res, err := id.Extract(y, cfg.Rank, cfg.idOptions())
	if err != nil {
		return nil, err
	}
	logClamp(log, res)

	out, err := AssembleTensor(t, res.J, res.P)
	if err != nil {
		return nil, err
	}
	ratio, err := linalg.ResidualRatio(y, res.J, res.P)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	log.Debug("tensor decomposed", "rank", res.K(), "sketch_residual", ratio, "elapsed", elapsed)
	return &TensorResult{
		Tensor: out,
		ID:     res,
		Sketch: y,
		Diagnostics: Diagnostics{
			SketchResidual: ratio,
			Elapsed:        elapsed,
		},
	}, nil
}

// Matrix computes a rank-cfg.Rank column ID of a.
func Matrix(ctx context.Context, a mat.Matrix, cfg Config) (*MatrixResult, error) {
	if a == nil {
		return nil, iderr.Invalid("decomp.Matrix", "nil matrix")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("op", "decomp.Matrix")
	start := time.Now()
	m, n := a.Dims()
	log.Debug("decomposing matrix", "rows", m, "cols", n,
		"k", cfg.Rank, "l", cfg.L(), "strategy", cfg.Strategy, "sketch", cfg.Sketch.Kind)

	y, err := project.Matrix(a, cfg.L(), project.Options{Operator: cfg.Sketch, Seed: cfg.Seed})
	if err != nil {
		return nil, err
	}
	res, err := id.Extract(y, cfg.Rank, cfg.idOptions())
	if err != nil {
		return nil, err
	}
	logClamp(log, res)

	cols, err := AssembleMatrix(a, res.J, res.P)
	if err != nil {
		return nil, err
	}
	ratio, err := linalg.ResidualRatio(y, res.J, res.P)
	if err != nil {
		return nil, err
	}
	return &MatrixResult{
		Columns: cols,
		ID:      res,
		Sketch:  y,
		Diagnostics: Diagnostics{
			SketchResidual: ratio,
			Elapsed:        time.Since(start),
		},
	}, nil
}

func logClamp(log logger.Logger, res *id.Result) {
	if res.Clamped {
		log.Warn("rank reduced to numerical rank of sketch",
			"requested", res.Requested, "returned", res.K(), "sketch_rank", res.Rank)
	}
}
