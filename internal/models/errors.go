package models

import (
	"errors"
	"fmt"
)

// Errors surfaced by the property workflow. Operation-level errors wrap the
// underlying cause, so a reverted mint matches both ErrMintFailed and
// ErrTransactionReverted.
var (
	ErrValidation          = errors.New("validation failed")
	ErrPinningFailed       = errors.New("pinning failed")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrNotFound            = errors.New("property not found")
	ErrTimeout             = errors.New("timed out waiting for confirmation")
	ErrChainUnavailable    = errors.New("blockchain node unavailable")

	ErrSubmissionFailed   = errors.New("property submission failed")
	ErrVerificationFailed = errors.New("property verification failed")
	ErrMintFailed         = errors.New("property mint failed")
	ErrPurchaseFailed     = errors.New("property purchase failed")
)

// ValidationError reports malformed input caught before any external call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
