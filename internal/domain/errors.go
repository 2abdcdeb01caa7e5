package domain

import (
	"errors"
	"fmt"
)

// Error message string constants - single source of truth for error messages.
// Use these in assert.Contains() checks when testing error messages.
const (
	ErrMsgNotFound               = "not found"
	ErrMsgAlreadyExists          = "already exists"
	ErrMsgValidation             = "validation failed"
	ErrMsgInsufficientBalance    = "insufficient balance"
	ErrMsgNegativeStock          = "not enough stock remaining"
	ErrMsgExpired                = "store entry has expired"
	ErrMsgRoleRestricted         = "user roles do not satisfy the restriction"
	ErrMsgLockTimeout            = "timed out acquiring locks"
	ErrMsgConcurrentModification = "concurrent modification, retries exhausted"
	ErrMsgUnresolvable           = "drop table has no resolvable entries"
	ErrMsgStoreUnavailable       = "backing store unavailable"
	ErrMsgNotPayable             = "currency is not payable"
	ErrMsgNotConsumable          = "item cannot be used"
	ErrMsgNotSellable            = "item cannot be sold"
)

// Common domain errors.
// These are used consistently across all layers; wrap with
// fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context and
// test with errors.Is.
var (
	ErrNotFound               = errors.New(ErrMsgNotFound)
	ErrAlreadyExists          = errors.New(ErrMsgAlreadyExists)
	ErrValidation             = errors.New(ErrMsgValidation)
	ErrInsufficientBalance    = errors.New(ErrMsgInsufficientBalance)
	ErrNegativeStock          = errors.New(ErrMsgNegativeStock)
	ErrExpired                = errors.New(ErrMsgExpired)
	ErrRoleRestricted         = errors.New(ErrMsgRoleRestricted)
	ErrLockTimeout            = errors.New(ErrMsgLockTimeout)
	ErrConcurrentModification = errors.New(ErrMsgConcurrentModification)
	ErrUnresolvable           = errors.New(ErrMsgUnresolvable)
	ErrStoreUnavailable       = errors.New(ErrMsgStoreUnavailable)
	ErrNotPayable             = errors.New(ErrMsgNotPayable)
	ErrNotConsumable          = errors.New(ErrMsgNotConsumable)
	ErrNotSellable            = errors.New(ErrMsgNotSellable)
)

// ErrConflict marks a transient store-side write conflict. The coordinator
// retries it internally; it never reaches callers directly (exhausted retries
// surface ErrConcurrentModification instead).
var ErrConflict = errors.New("write conflict")

// ValidationError reports which field of a request or entity failed
// validation and why. It unwraps to ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMsgValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a field-level validation failure.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
