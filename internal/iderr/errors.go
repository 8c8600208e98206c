// Package iderr defines the error kinds shared by the decomposition packages.
//
// Contract violations wrap ErrInvalidArgument and are returned before any
// computation starts. Numerical failures carry the rank that was reached so
// callers can retry with a larger sketch.
package iderr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNumericalInstability = errors.New("numerical instability")
	ErrNonConvergence       = errors.New("no convergence")
)

// Invalid wraps ErrInvalidArgument with an operation tag and a formatted reason.
func Invalid(op, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// InstabilityError reports a singular or near-singular interpolation solve.
// Rank is the largest rank for which a usable factorization existed.
type InstabilityError struct {
	Op     string
	Rank   int
	Reason string
}

func (e *InstabilityError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v (rank %d)", e.Op, ErrNumericalInstability, e.Rank)
	}
	return fmt.Sprintf("%s: %v: %s (rank %d)", e.Op, ErrNumericalInstability, e.Reason, e.Rank)
}

func (e *InstabilityError) Unwrap() error { return ErrNumericalInstability }

// ConvergenceError describes an iteration that stopped at its cap.
// It is a warning: Estimate is still usable.
type ConvergenceError struct {
	Op         string
	Iterations int
	Estimate   float64
	Delta      float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: %v after %d iterations (estimate %g, last delta %g)",
		e.Op, ErrNonConvergence, e.Iterations, e.Estimate, e.Delta)
}

func (e *ConvergenceError) Unwrap() error { return ErrNonConvergence }
