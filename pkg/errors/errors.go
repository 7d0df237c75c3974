// Package errors defines the error taxonomy shared by the memory service,
// the Ollama client and the HTTP layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error is a classified failure. Type drives both logging and the HTTP
// status returned to API callers.
type Error struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Op         string `json:"op,omitempty"`
	Retryable  bool   `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// Error types.
const (
	TypeValidation     = "validation_error"
	TypeNotFound       = "not_found_error"
	TypeUpstream       = "upstream_error"
	TypeStorage        = "storage_error"
	TypeRateLimit      = "rate_limit_error"
	TypeAuthentication = "authentication_error"
	TypeInternal       = "internal_error"
)

// NewValidationError creates a validation error (400).
func NewValidationError(op, message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Type:       TypeValidation,
		Op:         op,
	}
}

// NewNotFoundError creates a not found error (404).
func NewNotFoundError(op, message string) *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Message:    message,
		Type:       TypeNotFound,
		Op:         op,
	}
}

// NewUpstreamError wraps a failed call to the model runtime or another
// external service (502).
func NewUpstreamError(op, message string, cause error) *Error {
	return &Error{
		StatusCode: http.StatusBadGateway,
		Message:    message,
		Type:       TypeUpstream,
		Op:         op,
		Retryable:  true,
		Err:        cause,
	}
}

// NewStorageError wraps a persistence failure (500).
func NewStorageError(op string, cause error) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Message:    "storage failure",
		Type:       TypeStorage,
		Op:         op,
		Err:        cause,
	}
}

// NewRateLimitError creates a rate limit error (429).
func NewRateLimitError(message string) *Error {
	return &Error{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		Type:       TypeRateLimit,
		Retryable:  true,
	}
}

// NewAuthenticationError creates an authentication error (401).
func NewAuthenticationError(message string) *Error {
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Type:       TypeAuthentication,
	}
}

// NewInternalError creates an internal server error (500).
func NewInternalError(op, message string) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Type:       TypeInternal,
		Op:         op,
	}
}

// TypeOf returns the classification of err, or TypeInternal when err is
// not (and does not wrap) an *Error.
func TypeOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// Is reports whether err is classified as errType.
func Is(err error, errType string) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == errType
}

// As is a re-export of the standard library errors.As so callers that
// import this package under the name "errors" keep access to it.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
