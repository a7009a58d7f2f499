// Package util provides logging and the common error types shared by the
// capture and replay engines.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// branch with errors.Is without caring about the concrete type.
var (
	ErrDuplicateID         = errors.New("duplicate object id")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrConflict            = errors.New("conflicting id resolution")
	ErrGateway             = errors.New("device gateway call failed")
	ErrMalformedSnapshot   = errors.New("malformed snapshot")
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrValidationFailed    = errors.New("validation failed")
)

// DuplicateIDError is returned when a snapshot already holds an object with
// the same original id. A well-behaved capture never produces it.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("object id %s already present in snapshot", e.ID)
}

func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}

// NewDuplicateIDError creates a duplicate id error
func NewDuplicateIDError(id string) *DuplicateIDError {
	return &DuplicateIDError{ID: id}
}

// UnresolvedReferenceError means a cross-reference pointed at an original id
// with no translation yet. Either the type order is wrong or the referenced
// object is missing from the snapshot.
type UnresolvedReferenceError struct {
	ID    string
	Field string
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s references unresolved object id %s", e.Field, e.ID)
	}
	return fmt.Sprintf("object id %s has no resolved counterpart", e.ID)
}

func (e *UnresolvedReferenceError) Unwrap() error {
	return ErrUnresolvedReference
}

// NewUnresolvedReferenceError creates an unresolved reference error
func NewUnresolvedReferenceError(id, field string) *UnresolvedReferenceError {
	return &UnresolvedReferenceError{ID: id, Field: field}
}

// ConflictError is returned when one original id is resolved to two
// different target ids within the same run.
type ConflictError struct {
	ID       string
	Existing string
	Incoming string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("object id %s already resolved to %s, refusing %s", e.ID, e.Existing, e.Incoming)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError creates a conflict error
func NewConflictError(id, existing, incoming string) *ConflictError {
	return &ConflictError{ID: id, Existing: existing, Incoming: incoming}
}

// GatewayError wraps a failed device call with the operation and object it
// was made for.
type GatewayError struct {
	Op     string
	Object string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Object, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *GatewayError) Unwrap() []error {
	return []error{ErrGateway, e.Err}
}

// NewGatewayError wraps err unless it is already a GatewayError.
func NewGatewayError(op, object string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &GatewayError{Op: op, Object: object, Err: err}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// IsObjectScoped reports whether err should abort only the current object
// during replay, as opposed to the whole run.
func IsObjectScoped(err error) bool {
	return errors.Is(err, ErrUnresolvedReference) || errors.Is(err, ErrGateway)
}
