package decomp

import (
	"github.com/samcharles93/cpid/internal/id"
	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/sketch"
)

// DefaultOversample is added to Rank when SketchDim is left at zero.
const DefaultOversample = 5

// Config is the configuration surface of a decomposition call.
type Config struct {
	// Rank is the target rank k.
	Rank int
	// SketchDim is the sketch dimension l >= Rank. Zero selects
	// Rank + DefaultOversample.
	SketchDim int
	Strategy  id.Strategy
	// Factor is the strong RRQR bound; zero selects id.DefaultFactor.
	Factor float64
	Sketch sketch.Operator
	Seed   uint64
	// Workers bounds concurrent per-mode sketching.
	Workers int
}

// L returns the effective sketch dimension.
func (c Config) L() int {
	if c.SketchDim == 0 {
		return c.Rank + DefaultOversample
	}
	return c.SketchDim
}

func (c Config) Validate() error {
	const op = "decomp.Config"
	if c.Rank <= 0 {
		return iderr.Invalid(op, "rank %d must be positive", c.Rank)
	}
	if c.SketchDim < 0 {
		return iderr.Invalid(op, "sketch dimension %d must be positive", c.SketchDim)
	}
	if c.L() < c.Rank {
		return iderr.Invalid(op, "sketch dimension %d is smaller than rank %d", c.L(), c.Rank)
	}
	switch c.Strategy {
	case id.ColumnPivotedQR, id.StrongRRQR:
	default:
		return iderr.Invalid(op, "unknown strategy %v", c.Strategy)
	}
	if c.Factor != 0 && c.Factor < 1 {
		return iderr.Invalid(op, "strong RRQR factor %g must be >= 1", c.Factor)
	}
	return c.Sketch.Validate()
}

func (c Config) idOptions() id.Options {
	return id.Options{Strategy: c.Strategy, Factor: c.Factor}
}
