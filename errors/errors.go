package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates that the operation is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)

// ValidationError marks a caller bug: malformed or missing input to an
// operation. It is never retried and never hidden behind a fallback.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransportError wraps a failed call to an external collaborator (model
// provider, backend gateway). Status carries the HTTP status code when one
// is known; zero means the call never produced a response (network failure,
// timeout).
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying. Server-class
// statuses and missing responses are transient; client-class statuses mean
// the request itself is wrong and repeating it cannot help.
func (e *TransportError) Transient() bool {
	if e.Status == 0 {
		return true
	}
	if e.Status == 429 {
		return true
	}
	return e.Status >= 500
}

// NewTransport wraps err as a TransportError for the given operation.
func NewTransport(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, Status: status, Err: err}
}

// IsTransient reports whether err is a retryable transport failure.
// Validation errors are never transient regardless of wrapping.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsValidation(err) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
