package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")

	// ErrDecryptionFailed means a stored ciphertext failed authentication or
	// could not be parsed. It is never retried and never skipped.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrTransient wraps failures of an external collaborator (embedding
	// provider timeout, lost database connection, deadlock). Callers may
	// retry the operation.
	ErrTransient = errors.New("transient failure")
)

// Record workflow errors. Each wraps the broader category it belongs to so
// callers can branch on either.
var (
	ErrNotAssigned   = fmt.Errorf("record not assigned to caller: %w", ErrForbidden)
	ErrNotEditable   = fmt.Errorf("record is not editable: %w", ErrConflict)
	ErrInvalidStatus = fmt.Errorf("invalid review status: %w", ErrValidation)
	ErrLocked        = fmt.Errorf("record is locked by another operator: %w", ErrConflict)
	ErrAlreadyLocked = fmt.Errorf("record already locked: %w", ErrConflict)
)

// IsRetryable reports whether err is worth retrying by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}
