package api

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/decomp"
	"github.com/samcharles93/cpid/internal/id"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/sketch"
	"github.com/samcharles93/cpid/internal/version"
)

const (
	// DefaultMaxBodyBytes bounds request bodies when Options.MaxBodyBytes is zero.
	DefaultMaxBodyBytes = 64 << 20
	// DefaultMaxSketchDim bounds the sketch dimension when
	// Options.MaxSketchDim is zero.
	DefaultMaxSketchDim = 4096
)

type Options struct {
	Log          logger.Logger
	MaxBodyBytes int64
	// MaxSketchDim rejects requests whose effective sketch dimension is
	// larger. Each mode allocates an l x I_n sketch.
	MaxSketchDim int
	// Workers bounds per-mode sketching inside one request.
	Workers int
	// SNormDefaults fills tol, max_iter and init when a request omits them.
	SNormTol     float64
	SNormMaxIter int
}

type Server struct {
	log       logger.Logger
	maxBody   int64
	maxSketch int
	workers   int
	tol       float64
	maxIter   int
	clock     func() time.Time
	seed      func() uint64
}

func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logger.Default()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	maxSketch := opts.MaxSketchDim
	if maxSketch <= 0 {
		maxSketch = DefaultMaxSketchDim
	}
	return &Server{
		log:       log,
		maxBody:   maxBody,
		maxSketch: maxSketch,
		workers:   opts.Workers,
		tol:       opts.SNormTol,
		maxIter:   opts.SNormMaxIter,
		clock:     time.Now,
		seed:      rand.Uint64,
	}
}

// Register mounts the routes and installs the error handler that renders
// echo errors (404, 405, 413) in the {"error": ...} envelope.
func (s *Server) Register(e *echo.Echo) {
	e.HTTPErrorHandler = s.handleError
	limit := middleware.BodyLimit(s.maxBody)
	e.GET("/v1/healthz", s.handleHealth)
	e.POST("/v1/decompose", s.handleDecompose, limit)
	e.POST("/v1/decompose/matrix", s.handleDecomposeMatrix, limit)
	e.POST("/v1/snorm", s.handleSNorm, limit)
}

func (s *Server) handleError(c *echo.Context, err error) {
	if r, _ := echo.UnwrapResponse(c.Response()); r != nil && r.Committed {
		return
	}
	if werr := writeFailure(c, err); werr != nil {
		s.log.Warn("write error response failed", "error", werr)
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: version.String()})
}

// decodeJSON reads the whole body first so a body-limit error surfaces
// unwrapped and maps to 413.
func decodeJSON[T any](c *echo.Context) (T, error) {
	var out T
	b, err := io.ReadAll(c.Request().Body)
	if err != nil {
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return out, err
		}
		return out, newInvalidRequest("read request: " + err.Error())
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, newInvalidRequest("decode request: " + err.Error())
	}
	return out, nil
}

// config resolves request options; a missing seed draws a fresh one.
func (s *Server) config(o DecomposeOptions) (decomp.Config, error) {
	strategy, err := id.ParseStrategy(o.Strategy)
	if err != nil {
		return decomp.Config{}, err
	}
	kind, err := sketch.ParseKind(o.Sketch)
	if err != nil {
		return decomp.Config{}, err
	}
	seed := s.seed()
	if o.Seed != nil {
		seed = *o.Seed
	}
	cfg := decomp.Config{
		Rank:      o.Rank,
		SketchDim: o.SketchDim,
		Strategy:  strategy,
		Factor:    o.Factor,
		Sketch:    sketch.Operator{Kind: kind, Density: o.Density, SparseAware: o.SparseAware},
		Seed:      seed,
		Workers:   s.workers,
	}
	if err := cfg.Validate(); err != nil {
		return decomp.Config{}, err
	}
	if cfg.L() > s.maxSketch {
		return decomp.Config{}, newInvalidRequest(fmt.Sprintf("sketch dimension %d exceeds limit %d", cfg.L(), s.maxSketch))
	}
	return cfg, nil
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, newInvalidRequest("matrix must be non-empty")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, newInvalidRequest(fmt.Sprintf("matrix row %d has %d entries, want %d", i, len(row), cols))
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func rowsOf(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(make([]float64, c), i, m)
	}
	return out
}
