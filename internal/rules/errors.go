package rules

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction  = errors.New("extraction failed")
	ErrValidation  = errors.New("validation failed")
	ErrLookup      = errors.New("price lookup failed")
	ErrPersistence = errors.New("persistence failed")
	ErrNotFound    = errors.New("note not found")
)

// ValidationError names the offending field of a rejected note or condition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ExtractionError wraps a failure of the text-understanding collaborator.
func ExtractionError(err error) error {
	return fmt.Errorf("%w: %w", ErrExtraction, err)
}

// LookupError wraps a failed quote fetch for symbol.
func LookupError(symbol string, err error) error {
	return fmt.Errorf("%w for %s: %w", ErrLookup, symbol, err)
}

// PersistenceError wraps a storage failure.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
