package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchSession is returned when a session was never opened or has
	// already been reaped.
	ErrNoSuchSession = errors.New("no such session")

	// ErrCancelled is returned when the parent context was cancelled
	// mid-orchestration.
	ErrCancelled = errors.New("orchestration cancelled")
)

// ValidationError wraps field-specific validation failures at the
// transport surface.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
