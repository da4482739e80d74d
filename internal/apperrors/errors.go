package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how callers should react to it
type Kind int

const (
	// KindValidation rejects a request before anything is mutated
	KindValidation Kind = iota + 1
	// KindNotFound means the addressed entity does not exist
	KindNotFound
	// KindPersistence means the atomic unit failed and nothing was committed;
	// the caller may retry
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// AppError represents a classified application error
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"` // Internal error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Validation creates a validation error
func Validation(err error) *AppError {
	return New(KindValidation, "invalid request", err)
}

// Validationf creates a validation error from a format string
func Validationf(format string, args ...any) *AppError {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

// NotFound creates a not found error
func NotFound(message string) *AppError {
	return New(KindNotFound, message, nil)
}

// Persistence wraps a storage failure
func Persistence(op string, err error) *AppError {
	return New(KindPersistence, op+" failed", err)
}

// KindOf returns the kind of the first AppError in err's chain, or 0
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether the caller may retry the failed operation
func IsRetryable(err error) bool {
	return KindOf(err) == KindPersistence
}

// HTTPStatus maps an error to a response status
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
