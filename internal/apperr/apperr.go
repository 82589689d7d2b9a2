// Package apperr defines the error taxonomy shared across the backend.
// Callers branch on error kind, never on message text.
package apperr

import (
	"errors"
	"fmt"
)

// Stable business error codes.
const (
	CodeUnsupportedFormat     = "unsupported_format"
	CodeNotACredit            = "not_a_credit"
	CodeExceedsRemaining      = "exceeds_remaining"
	CodeExceedsInvoiceBalance = "exceeds_invoice_balance"
	CodeServiceNotConfigured  = "service_not_configured"
	CodeDuplicateReference    = "duplicate_reference"
)

// ValidationError reports malformed input. The offending field and raw
// value are always surfaced, never defaulted away.
type ValidationError struct {
	Field string
	Value string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Msg)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// NewValidation creates a ValidationError for a field and its raw value.
func NewValidation(field, value, msg string) error {
	return &ValidationError{Field: field, Value: value, Msg: msg}
}

// BusinessError reports a domain-rule violation with a stable code.
type BusinessError struct {
	Code string
	Msg  string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewBusiness creates a BusinessError with a stable code.
func NewBusiness(code, msg string) error {
	return &BusinessError{Code: code, Msg: msg}
}

// NotFoundError reports a missing or cross-tenant reference. Both cases
// are deliberately indistinguishable to the caller.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFound creates a NotFoundError for an entity reference.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError reports a uniqueness violation or an invalid repeat of a
// one-shot transition, e.g. reversing an already reversed payment.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// NewConflict creates a ConflictError.
func NewConflict(msg string) error {
	return &ConflictError{Msg: msg}
}

// TransientError reports an infrastructure failure (network, timeout,
// open circuit) talking to an external service. Callers may retry.
type TransientError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransientError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransient wraps an infrastructure failure.
func NewTransient(op string, timeout bool, err error) error {
	return &TransientError{Op: op, Timeout: timeout, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

// IsBusiness reports whether err is a BusinessError, optionally matching
// a specific code when code is non-empty.
func IsBusiness(err error, code string) bool {
	var t *BusinessError
	if !errors.As(err, &t) {
		return false
	}
	return code == "" || t.Code == code
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
