package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrTimeout indicates that an operation did not complete before its deadline.
var ErrTimeout = errors.New("operation timed out")

// ErrCancelled indicates that the caller's context was cancelled while waiting.
var ErrCancelled = errors.New("operation cancelled")

// ErrUpstream indicates that an upstream rate source failed.
var ErrUpstream = errors.New("upstream failure")

// ErrBusUnavailable indicates that the event bus refused to accept an event.
var ErrBusUnavailable = errors.New("event bus unavailable")

// InvalidTokenError reports a caller-supplied token that failed to parse.
// It unwraps to ErrValidation.
type InvalidTokenError struct {
	Token  string
	Reason string
}

func (e *InvalidTokenError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: invalid token '%s'", ErrValidation, e.Token)
	}
	return fmt.Sprintf("%s: invalid token '%s': %s", ErrValidation, e.Token, e.Reason)
}

func (e *InvalidTokenError) Unwrap() error {
	return ErrValidation
}

// NewInvalidTokenError builds an InvalidTokenError.
func NewInvalidTokenError(token, reason string) error {
	return &InvalidTokenError{Token: token, Reason: reason}
}
