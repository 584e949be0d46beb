// Package faults defines the error taxonomy shared by the generator, the
// ledger and the transports.
package faults

import (
	"errors"
	"fmt"
)

// ErrSimulated is the injected transient fault. Callers should back off and retry.
var ErrSimulated = &SimulatedError{}

// InvalidRequestError reports a missing or contradictory request field.
// Not retryable.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// InvalidRequest builds an InvalidRequestError for field.
func InvalidRequest(field, reason string) error {
	return &InvalidRequestError{Field: field, Reason: reason}
}

// Missing is shorthand for a required field that was empty.
func Missing(field string) error {
	return InvalidRequest(field, "field required")
}

// AuthError reports rejected credentials or tokens.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Reason }

func AuthFailure(reason string) error {
	return &AuthError{Reason: reason}
}

// NotFoundError reports a history entry that does not exist or is not visible
// to the caller.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

func NotFound(what string) error {
	return &NotFoundError{What: what}
}

// SimulatedError is the deliberate fault-injection error.
type SimulatedError struct{}

func (*SimulatedError) Error() string   { return "simulated backend failure" }
func (*SimulatedError) Retryable() bool { return true }

// SerializationError is absorbed by the ledger; it never reaches a trace caller.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// IsInvalid reports whether err is (or wraps) an InvalidRequestError.
func IsInvalid(err error) bool {
	var target *InvalidRequestError
	return errors.As(err, &target)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// Retryable reports whether err signals a transient condition.
func Retryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
