// Package errors defines the error values and error types shared by the
// stageflow packages.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is wrapped by the closed-queue and closed-writer errors.
	ErrClosed = errors.New("resource is closed")

	// ErrCapacityExceeded is wrapped by the full-buffer errors.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidConfiguration matches every ValidationError.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrWorkerFault matches every item a worker dropped.
	ErrWorkerFault = errors.New("worker fault")
)

// ValidationError describes a configuration parameter that failed validation.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError wraps a failure of a named operation inside a module.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches free-form context and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// IsClosed reports whether err comes from a closed queue or writer.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsWorkerFault reports whether err is or wraps ErrWorkerFault.
func IsWorkerFault(err error) bool {
	return errors.Is(err, ErrWorkerFault)
}
