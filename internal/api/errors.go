package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/cpid/internal/iderr"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// ResponseError is the body of every error response, wrapped as
// {"error": {...}}.
type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	// Rank is set for numerical instability so clients can retry with a
	// larger sketch.
	Rank *int `json:"rank,omitempty"`
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, ResponseError{Type: "invalid_request_error", Message: msg})
}

func writeError(c *echo.Context, status int, e ResponseError) error {
	return c.JSON(status, map[string]any{"error": e})
}

// writeFailure maps a library error to a status code.
func writeFailure(c *echo.Context, err error) error {
	var ie *iderr.InstabilityError
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, iderr.ErrInvalidArgument):
		return writeBadRequest(c, err.Error())
	case errors.As(err, &ie):
		rank := ie.Rank
		return writeError(c, http.StatusUnprocessableEntity, ResponseError{
			Type:    "numerical_error",
			Code:    "numerical_instability",
			Message: err.Error(),
			Rank:    &rank,
		})
	case echo.StatusCode(err) != 0:
		code := echo.StatusCode(err)
		kind := "server_error"
		if code < http.StatusInternalServerError {
			kind = "invalid_request_error"
		}
		return writeError(c, code, ResponseError{Type: kind, Message: http.StatusText(code)})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return writeError(c, http.StatusServiceUnavailable, ResponseError{Type: "server_error", Code: "cancelled", Message: err.Error()})
	default:
		return writeError(c, http.StatusInternalServerError, ResponseError{Type: "server_error", Message: err.Error()})
	}
}
