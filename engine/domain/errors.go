package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrEmptyQuestion     = errors.New("question is required")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyAnswer       = errors.New("answer is required")
	ErrMissingConfig     = errors.New("missing required configuration")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ConfigurationError reports a missing or malformed startup setting.
type ConfigurationError struct {
	Key     string
	Wrapped error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Key, e.Wrapped)
}

func (e *ConfigurationError) Unwrap() error { return e.Wrapped }

// EmbeddingError reports a failed call to the embedding provider.
type EmbeddingError struct {
	Op      string
	Wrapped error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding: %s: %v", e.Op, e.Wrapped)
}

func (e *EmbeddingError) Unwrap() error { return e.Wrapped }

// IndexError reports a failed build or search against the vector index.
type IndexError struct {
	Op      string
	Wrapped error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index: %s: %v", e.Op, e.Wrapped)
}

func (e *IndexError) Unwrap() error { return e.Wrapped }

// DimensionMismatchError is returned when a vector's length differs from the
// dimension fixed by the first vector of an index generation.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch, e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }
