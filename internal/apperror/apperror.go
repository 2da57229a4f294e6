// Package apperror defines the domain error taxonomy shared by the service
// and handler layers.
//
// Services return these errors; handlers translate them into HTTP status
// codes with errors.Is. Neither side needs to know how the other works.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("unavailable")
	ErrTimeout     = errors.New("timeout")
)

// AppError carries a sentinel (for errors.Is) plus a message that is safe
// to show to API clients.
type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unavailable reports that a backing dependency (sandbox, model) cannot
// serve the request right now. HTTP handlers map this to 503.
func Unavailable(component string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s is unavailable", component),
	}
}

// Timeout reports that an operation exceeded its deadline.
func Timeout(operation string) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: fmt.Sprintf("%s timed out", operation),
	}
}
