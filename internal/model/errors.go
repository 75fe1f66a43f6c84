package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrStorageCorruption   = errors.New("storage corruption")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError reports an invalid field at a boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// IsValidation checks if an error is a validation error (including wrapped errors)
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// CorruptionError is returned when a persisted record cannot be decoded.
type CorruptionError struct {
	Key string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt record %s: %v", e.Key, e.Err)
}

func (e *CorruptionError) Unwrap() []error { return []error{ErrStorageCorruption, e.Err} }

// NewCorruptionError wraps a decode failure for the record at key.
func NewCorruptionError(key string, err error) error {
	return &CorruptionError{Key: key, Err: err}
}

// IsStorageCorruption reports whether err was caused by an unreadable record.
func IsStorageCorruption(err error) bool { return errors.Is(err, ErrStorageCorruption) }

// CapacityError reports a system prompt that alone exceeds the token budget.
type CapacityError struct {
	Needed int
	Budget int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("system prompt needs %d tokens, budget is %d", e.Needed, e.Budget)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// IsCapacityExceeded reports whether err is a token budget configuration error.
func IsCapacityExceeded(err error) bool { return errors.Is(err, ErrCapacityExceeded) }

// IsUpstreamUnavailable reports whether a capability was rate-limited or overloaded after retries.
func IsUpstreamUnavailable(err error) bool { return errors.Is(err, ErrUpstreamUnavailable) }
