package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrPhoneTaken is the conflict raised when a phone number already
	// belongs to another account.
	ErrPhoneTaken = fmt.Errorf("%w: phone number already registered", ErrConflict)

	// Token errors. Expired and invalid are kept apart so callers can tell
	// a stale link from a forged one.
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")

	// Account state errors
	ErrAccountSuspended = errors.New("account is suspended")

	// Points errors
	ErrInsufficientPoints = errors.New("insufficient points")

	// Recovery errors
	ErrRecoveryDisabled = errors.New("recovery method is disabled")
)

// ValidationError carries a client-facing message for rejected input.
// It matches ErrBadRequest under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// NewValidationError builds a ValidationError
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}
