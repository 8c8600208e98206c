package api

import (
	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/report"
)

// DecomposeOptions are the configuration fields shared by both
// decomposition endpoints.
type DecomposeOptions struct {
	Rank        int     `json:"rank"`
	SketchDim   int     `json:"sketch_dim,omitempty"`
	Strategy    string  `json:"strategy,omitempty"`
	Factor      float64 `json:"factor,omitempty"`
	Sketch      string  `json:"sketch,omitempty"`
	Density     int     `json:"density,omitempty"`
	SparseAware bool    `json:"sparse_aware,omitempty"`
	Seed        *uint64 `json:"seed,omitempty"`
}

type DecomposeRequest struct {
	DecomposeOptions
	Tensor *cp.Tensor `json:"tensor"`
	// RelativeError requests ||T - T'||/||T|| in the report.
	RelativeError bool `json:"relative_error,omitempty"`
}

type DecomposeResponse struct {
	Report report.Report `json:"report"`
	Tensor *cp.Tensor    `json:"tensor"`
}

type MatrixRequest struct {
	DecomposeOptions
	// Matrix is row-major.
	Matrix [][]float64 `json:"matrix"`
}

type MatrixResponse struct {
	Report report.Report `json:"report"`
	// Columns holds A[:, selected], row-major.
	Columns [][]float64 `json:"columns"`
	// Interp is the k x n interpolation matrix, row-major.
	Interp [][]float64 `json:"interp"`
}

type SNormRequest struct {
	Tensor  *cp.Tensor `json:"tensor"`
	Tol     float64    `json:"tol,omitempty"`
	MaxIter int        `json:"max_iter,omitempty"`
	Init    string     `json:"init,omitempty"`
	// RunToCap performs every sweep up to max_iter.
	RunToCap bool `json:"run_to_cap,omitempty"`
}

type SNormResponse struct {
	Report report.Report `json:"report"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
