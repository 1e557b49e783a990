// Package apperrors provides structured errors with kind classification and
// HTTP status code mapping for the handler layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error for response formatting.
type Kind string

const (
	// KindValidation indicates invalid input (HTTP 400)
	KindValidation Kind = "validation"
	// KindNotFound indicates a missing target (HTTP 404)
	KindNotFound Kind = "not_found"
	// KindConflict indicates a uniqueness violation (HTTP 409)
	KindConflict Kind = "conflict"
	// KindInternal indicates a server-side failure (HTTP 500)
	KindInternal Kind = "internal"
)

// Error is an error with a kind, a message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code appropriate for this error's kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Validation creates a validation error (HTTP 400).
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound creates a not-found error (HTTP 404).
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict creates a conflict error (HTTP 409).
func Conflict(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Cause: cause}
}

// Internal creates an internal error (HTTP 500) wrapping its cause.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus returns the status code for any error, defaulting to 500 for
// errors that carry no kind.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
