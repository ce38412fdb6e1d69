/*
errors.go - Centralized error types for attendance operations

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every failure an operation can report belongs to exactly one kind, and
  every kind is detected before any record is written.

ERROR CATEGORIES:
  1. Validation    - Malformed or out-of-range input (400)
  2. Conflict      - Date range overlaps an existing record (409)
  3. Authorization - Role or ownership does not permit the action (403)
  4. Not found     - Record missing or outside the actor's scope (404)
  5. Store         - Persistence failure; generic and retryable (503)

USAGE:
  Structured errors carry the human-readable reason shown to the user and
  unwrap to a sentinel for errors.Is:

    if errors.Is(err, generic.ErrConflict) {
        ...
    }

    var verr *generic.ValidationError
    if errors.As(err, &verr) {
        log.Printf("field %s: %s", verr.Field, verr.Reason)
    }

SEE ALSO:
  - api/errors.go: Maps these kinds to HTTP responses
  - attendance/validate.go: Produces ValidationError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input is malformed or out of range.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a new record overlaps an existing one.
	ErrConflict = errors.New("conflicting record")

	// ErrForbidden is returned when the acting user may not perform an action.
	ErrForbidden = errors.New("not authorized")

	// ErrNotFound is returned when a record does not exist or is not visible
	// to the acting user.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the record store fails. Callers should
	// treat it as retryable.
	ErrUnavailable = errors.New("record store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ConflictError describes an overlap with an existing record.
type ConflictError struct {
	Kind       string // e.g. "sick_leave", "vacation_request"
	ExistingID string
	Existing   Period
	Reason     string
}

func (e *ConflictError) Error() string {
	if e.Existing.Valid() {
		return fmt.Sprintf("%s (existing %s %s %s)", e.Reason, e.Kind, e.ExistingID, e.Existing)
	}
	return fmt.Sprintf("%s (existing %s %s)", e.Reason, e.Kind, e.ExistingID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// AuthorizationError describes an action refused for the acting user.
type AuthorizationError struct {
	ActorID string
	Action  string
	Reason  string
}

// Forbidden builds an AuthorizationError.
func Forbidden(actorID, action, reason string) *AuthorizationError {
	return &AuthorizationError{ActorID: actorID, Action: action, Reason: reason}
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

func (e *AuthorizationError) Unwrap() error {
	return ErrForbidden
}

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StoreError wraps a persistence failure. It matches both ErrUnavailable
// and the underlying driver error.
type StoreError struct {
	Op  string
	Err error
}

// WrapStore wraps err as a StoreError unless it is nil or already one of the
// domain kinds (stores may report NotFound or Conflict themselves).
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsClientError returns true if the error is due to the caller's input or
// permissions rather than the infrastructure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDomainError returns true for the four domain kinds.
func IsDomainError(err error) bool {
	return IsClientError(err) || IsNotFound(err)
}
