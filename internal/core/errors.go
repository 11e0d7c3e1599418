package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Callers wrap these with context and
// the HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrPersistence      = errors.New("persistence failure")
	ErrConcurrentUpdate = errors.New("template modified concurrently")
)

var (
	ErrInvalidDay      = fmt.Errorf("%w: invalid day", ErrValidation)
	ErrInvalidMonth    = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidInterval = fmt.Errorf("%w: interval must be a positive integer", ErrValidation)
)

// FieldError reports a single invalid input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a FieldError.
func Invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}
