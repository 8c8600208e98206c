// Package report summarizes decomposition and s-norm runs as JSON documents
// shared by the CLI and the HTTP API.
package report

import (
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/cpid/internal/decomp"
	"github.com/samcharles93/cpid/internal/snorm"
)

const (
	KindTensor = "tensor"
	KindMatrix = "matrix"
	KindSNorm  = "snorm"
)

type Config struct {
	Rank        int     `json:"rank"`
	SketchDim   int     `json:"sketch_dim"`
	Strategy    string  `json:"strategy"`
	Factor      float64 `json:"factor,omitempty"`
	Sketch      string  `json:"sketch"`
	Density     int     `json:"density,omitempty"`
	SparseAware bool    `json:"sparse_aware"`
	Seed        uint64  `json:"seed"`
}

type Decomposition struct {
	Selected       []int   `json:"selected"`
	Requested      int     `json:"requested"`
	Returned       int     `json:"returned"`
	SketchRank     int     `json:"sketch_rank"`
	Clamped        bool    `json:"clamped"`
	Swaps          int     `json:"swaps,omitempty"`
	SketchResidual float64 `json:"sketch_residual"`
	// RelativeError is only set for tensor runs where it was computed.
	RelativeError *float64  `json:"relative_error,omitempty"`
	Weights       []float64 `json:"weights,omitempty"`
}

type SNorm struct {
	Norm       float64 `json:"norm"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Delta      float64 `json:"delta"`
	Tol        float64 `json:"tol"`
	MaxIter    int     `json:"max_iter"`
	Init       string  `json:"init"`
	RunToCap   bool    `json:"run_to_cap,omitempty"`
	Warning    string  `json:"warning,omitempty"`
}

// Report is one run.
type Report struct {
	RunID     string         `json:"run_id"`
	Kind      string         `json:"kind"`
	CreatedAt time.Time      `json:"created_at"`
	ElapsedMS float64        `json:"elapsed_ms"`
	Input     []int          `json:"input_dims,omitempty"`
	Config    *Config        `json:"config,omitempty"`
	Result    *Decomposition `json:"result,omitempty"`
	SNorm     *SNorm         `json:"snorm,omitempty"`
}

func newReport(kind string, now time.Time) Report {
	return Report{
		RunID:     uuid.NewString(),
		Kind:      kind,
		CreatedAt: now.UTC(),
	}
}

func configOf(cfg decomp.Config) *Config {
	return &Config{
		Rank:        cfg.Rank,
		SketchDim:   cfg.L(),
		Strategy:    cfg.Strategy.String(),
		Factor:      cfg.Factor,
		Sketch:      cfg.Sketch.Kind.String(),
		Density:     cfg.Sketch.Density,
		SparseAware: cfg.Sketch.SparseAware,
		Seed:        cfg.Seed,
	}
}

// Tensor summarizes a tensor decomposition. relErr may be nil when the
// caller skipped the error computation.
func Tensor(res *decomp.TensorResult, cfg decomp.Config, dims []int, relErr *float64, now time.Time) Report {
	r := newReport(KindTensor, now)
	r.ElapsedMS = millis(res.Elapsed)
	r.Input = dims
	r.Config = configOf(cfg)
	r.Result = &Decomposition{
		Selected:       res.ID.J,
		Requested:      res.ID.Requested,
		Returned:       res.ID.K(),
		SketchRank:     res.ID.Rank,
		Clamped:        res.ID.Clamped,
		Swaps:          res.ID.Swaps,
		SketchResidual: res.SketchResidual,
		RelativeError:  relErr,
		Weights:        res.Tensor.Weights(),
	}
	return r
}

func Matrix(res *decomp.MatrixResult, cfg decomp.Config, now time.Time) Report {
	r := newReport(KindMatrix, now)
	r.ElapsedMS = millis(res.Elapsed)
	rows, _ := res.Columns.Dims()
	_, cols := res.ID.P.Dims()
	r.Input = []int{rows, cols}
	r.Config = configOf(cfg)
	r.Result = &Decomposition{
		Selected:       res.ID.J,
		Requested:      res.ID.Requested,
		Returned:       res.ID.K(),
		SketchRank:     res.ID.Rank,
		Clamped:        res.ID.Clamped,
		Swaps:          res.ID.Swaps,
		SketchResidual: res.SketchResidual,
	}
	return r
}

// SNormRun summarizes an s-norm estimate. Options are reported after
// defaults are applied by the caller.
func SNormRun(res *snorm.Result, opts snorm.Options, dims []int, elapsed time.Duration, now time.Time) Report {
	r := newReport(KindSNorm, now)
	r.ElapsedMS = millis(elapsed)
	r.Input = dims
	s := &SNorm{
		Norm:       res.Norm,
		Iterations: res.Iterations,
		Converged:  res.Converged,
		Delta:      res.Delta,
		Tol:        opts.Tol,
		MaxIter:    opts.MaxIter,
		Init:       opts.Init.String(),
		RunToCap:   opts.RunToCap,
	}
	if w := res.Warning(); w != nil {
		s.Warning = w.Error()
	}
	r.SNorm = s
	return r
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Write encodes r as indented JSON.
func Write(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Read decodes a report.
func Read(rd io.Reader) (Report, error) {
	var r Report
	err := json.NewDecoder(rd).Decode(&r)
	return r, err
}
