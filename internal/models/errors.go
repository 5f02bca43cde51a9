package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a rejected request. Callers surface it as a 400.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes why a request was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
