// Package errors defines the sentinel errors shared by the catalog service
// and the AppError type that carries an API code and HTTP status with them.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrRateLimited    = errors.New("rate limited")
)

// API error codes.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

type class struct {
	sentinel error
	code     string
	status   int
	message  string
}

// classes is checked in order; the first sentinel matched by errors.Is wins.
var classes = []class{
	{ErrNotFound, CodeNotFound, http.StatusNotFound, "resource not found"},
	{ErrInvalidInput, CodeInvalidInput, http.StatusBadRequest, ""},
	{ErrUnauthorized, CodeUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{ErrRateLimited, CodeRateLimited, http.StatusTooManyRequests, "too many requests"},
	{ErrServiceUnavail, CodeServiceUnavailable, http.StatusServiceUnavailable, "an upstream service is unavailable"},
}

var internalClass = class{ErrInternal, CodeInternal, http.StatusInternalServerError, "an internal error occurred"}

// AppError is an error with a stable API code, a client-safe message and an
// HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(c class, message string, err error) *AppError {
	return &AppError{Code: c.code, Message: message, Status: c.status, Err: err}
}

// NotFound reports a missing resource, identified by key.
func NotFound(resource, key string) *AppError {
	return newError(classes[0], fmt.Sprintf("%s %q not found", resource, key), ErrNotFound)
}

// InvalidInput reports a request the client has to fix.
func InvalidInput(message string) *AppError {
	return newError(classes[1], message, ErrInvalidInput)
}

// Unauthorized reports missing or rejected credentials.
func Unauthorized(message string) *AppError {
	return newError(classes[2], message, ErrUnauthorized)
}

// ServiceUnavailable reports an unreachable upstream. The cause stays
// reachable through errors.Is.
func ServiceUnavailable(service string, err error) *AppError {
	return newError(classes[4], service+" is unavailable", errors.Join(ErrServiceUnavail, err))
}

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return newError(internalClass, internalClass.message, err)
}

// Wrap adds context to err.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// HTTPStatus returns the HTTP status for err.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return classify(err).status
}

// Describe returns the API code and a client-safe message for err. AppErrors
// keep their own; sentinel errors get a generic message, except invalid input
// whose text is meant for the client.
func Describe(err error) (code, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, appErr.Message
	}
	c := classify(err)
	if c.message == "" {
		return c.code, err.Error()
	}
	return c.code, c.message
}

func classify(err error) class {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c
		}
	}
	return internalClass
}
