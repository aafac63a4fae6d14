package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("request conflicts with current state")
	ErrDuplicateEntry = errors.New("resource already exists")
	ErrValidation     = errors.New("validation failed")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUnauthenticated       = errors.New("not authenticated")
	ErrInvalidToken          = errors.New("invalid token")
	ErrTokenExpired          = errors.New("token expired")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrSessionExpired        = errors.New("session expired due to inactivity")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")

	// Account state errors
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountDeactivated = errors.New("account is deactivated")
)

// LoginFailure reports a rejected password together with the attempts left
// before the account locks.
type LoginFailure struct {
	AttemptsRemaining int
}

func (e *LoginFailure) Error() string {
	return fmt.Sprintf("invalid credentials. %d attempt(s) remaining", e.AttemptsRemaining)
}

func (e *LoginFailure) Unwrap() error { return ErrInvalidCredentials }

// LockoutError reports how long an account stays locked.
type LockoutError struct {
	RemainingMinutes int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account is locked. Try again after %d minutes", e.RemainingMinutes)
}

func (e *LockoutError) Unwrap() error { return ErrAccountLocked }

// FieldError is one failed field of a ValidationError.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every field-level failure of one request.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns nil when no field failed, so callers can build up a
// ValidationError and return it unconditionally.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DetailError pairs a sentinel with a message that is safe to show callers.
type DetailError struct {
	Kind    error
	Message string
}

func (e *DetailError) Error() string { return e.Message }

func (e *DetailError) Unwrap() error { return e.Kind }

// Detail wraps kind with a formatted caller-facing message.
func Detail(kind error, format string, args ...any) error {
	return &DetailError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports that the named resource does not exist.
func NotFound(resource string) error {
	return Detail(ErrNotFound, "%s not found", resource)
}
