package rserr

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeStatisticalError = "STATISTICAL_ERROR"
	CodeBaselineError    = "BASELINE_CALCULATION"
	CodeCacheError       = "CACHE_ERROR"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = New(fiber.StatusBadRequest, CodeNotFound, "resource not found with given parameters")

	// ErrInvalidReq is returned when a request is invalid.
	ErrInvalidReq = New(fiber.StatusBadRequest, CodeInvalidRequest, "invalid request: some or all request parameters are invalid")

	// ErrInternalError is returned when an internal error occurs.
	ErrInternalError = New(fiber.StatusInternalServerError, CodeInternalError, "internal server error occurred")

	// ErrStatistical is returned on invalid statistical input, such as an
	// empty sample handed to an estimator requiring at least two points.
	ErrStatistical = New(fiber.StatusUnprocessableEntity, CodeStatisticalError, "statistical computation received invalid input")

	// ErrBaseline is returned when a baseline computation fails unexpectedly.
	ErrBaseline = New(fiber.StatusInternalServerError, CodeBaselineError, "baseline calculation failed")
)

type Extras map[string]interface{}

type RiftError struct {
	StatusCode int    `example:"400"`
	ErrorCode  string `example:"INVALID_REQUEST"`
	Message    string `example:"invalid request: some or all request parameters are invalid"`
	Extras     *Extras
}

func New(statusCode int, errorCode string, message string) *RiftError {
	return &RiftError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

func (e RiftError) Msg(format string, parts ...interface{}) *RiftError {
	e.Message = fmt.Sprintf(format, parts...)
	return &e
}

func (e RiftError) WithExtras(extras Extras) *RiftError {
	e.Extras = &extras
	return &e
}

func (e *RiftError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

func NewInvalidViolations(violations interface{}) *RiftError {
	// copy ErrInvalidRequest as e
	e := *ErrInvalidReq
	e.Extras = &Extras{
		"violations": violations,
	}
	return &e
}

// NewInsufficientData reports a context that has fewer matches than the
// configured minimum. Recoverable: callers surface it as a "no baseline
// available" state rather than a failure.
func NewInsufficientData(required, available int) *RiftError {
	e := *New(fiber.StatusUnprocessableEntity, CodeInsufficientData, "not enough matches in the requested context")
	e.Extras = &Extras{
		"required":  required,
		"available": available,
	}
	return &e
}

// IsInsufficientData reports whether err is an insufficient-data error.
func IsInsufficientData(err error) bool {
	re, ok := err.(*RiftError)
	return ok && re.ErrorCode == CodeInsufficientData
}
