package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/cpid/internal/decomp"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/report"
	"github.com/samcharles93/cpid/internal/snorm"
)

func (s *Server) handleDecompose(c *echo.Context) error {
	req, err := decodeJSON[DecomposeRequest](c)
	if err != nil {
		return writeFailure(c, err)
	}
	if req.Tensor == nil {
		return writeBadRequest(c, "tensor is required")
	}
	cfg, err := s.config(req.DecomposeOptions)
	if err != nil {
		return writeFailure(c, err)
	}

	log := s.log.With("route", "decompose")
	ctx := logger.WithContext(c.Request().Context(), log)
	res, err := decomp.Tensor(ctx, req.Tensor, cfg)
	if err != nil {
		log.Warn("decompose failed", "error", err)
		return writeFailure(c, err)
	}
	var relErr *float64
	if req.RelativeError {
		e, err := res.RelativeError(req.Tensor)
		if err != nil {
			return writeFailure(c, err)
		}
		relErr = &e
	}
	rep := report.Tensor(res, cfg, req.Tensor.Dims(), relErr, s.clock())
	log.Info("decomposed tensor", "run_id", rep.RunID, "rank", res.ID.K(), "elapsed", res.Elapsed)
	return c.JSON(http.StatusOK, DecomposeResponse{Report: rep, Tensor: res.Tensor})
}

func (s *Server) handleDecomposeMatrix(c *echo.Context) error {
	req, err := decodeJSON[MatrixRequest](c)
	if err != nil {
		return writeFailure(c, err)
	}
	a, err := denseFromRows(req.Matrix)
	if err != nil {
		return writeFailure(c, err)
	}
	cfg, err := s.config(req.DecomposeOptions)
	if err != nil {
		return writeFailure(c, err)
	}

	log := s.log.With("route", "decompose_matrix")
	ctx := logger.WithContext(c.Request().Context(), log)
	res, err := decomp.Matrix(ctx, a, cfg)
	if err != nil {
		log.Warn("decompose failed", "error", err)
		return writeFailure(c, err)
	}
	rep := report.Matrix(res, cfg, s.clock())
	log.Info("decomposed matrix", "run_id", rep.RunID, "rank", res.ID.K(), "elapsed", res.Elapsed)
	return c.JSON(http.StatusOK, MatrixResponse{
		Report:  rep,
		Columns: rowsOf(res.Columns),
		Interp:  rowsOf(res.ID.P),
	})
}

func (s *Server) handleSNorm(c *echo.Context) error {
	req, err := decodeJSON[SNormRequest](c)
	if err != nil {
		return writeFailure(c, err)
	}
	if req.Tensor == nil {
		return writeBadRequest(c, "tensor is required")
	}
	policy, err := snorm.ParseInit(req.Init)
	if err != nil {
		return writeFailure(c, err)
	}
	opts := snorm.Options{
		Tol:      req.Tol,
		MaxIter:  req.MaxIter,
		Init:     policy,
		RunToCap: req.RunToCap,
		Log:      s.log.With("route", "snorm"),
	}
	if opts.Tol == 0 {
		opts.Tol = s.tol
	}
	if opts.MaxIter == 0 {
		opts.MaxIter = s.maxIter
	}

	start := time.Now()
	res, err := snorm.Estimate(req.Tensor, opts)
	if err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(http.StatusOK, SNormResponse{
		Report: report.SNormRun(res, opts.WithDefaults(), req.Tensor.Dims(), time.Since(start), s.clock()),
	})
}
