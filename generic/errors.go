/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Data errors - malformed input rows, unknown employee code,
     missing active contract. Reported per unit (per row, per summary).
  2. State errors - acting on an entity that is not in the required state
     (e.g. approving a request that is not PENDING). Rejected outright.
  3. Store errors - missing rows and uniqueness violations.

USAGE:
  Domain packages wrap generic errors:

    if errors.Is(err, generic.ErrInvalidState) {
        return http.StatusConflict
    }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP status codes
  - attendance/importer.go: RowError for partial-failure batches
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
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed or out-of-range input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState is returned when a transition is attempted from the wrong state.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when a create collides with an existing record.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateEntry is returned when an idempotency key already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrUnknownEmployee is returned when an employee id or code has no match.
	ErrUnknownEmployee = errors.New("unknown employee")

	// ErrUnknownLeaveType is returned when a leave type code has no match.
	ErrUnknownLeaveType = errors.New("unknown leave type")

	// ErrNoActiveContract is returned when no contract covers the requested date.
	ErrNoActiveContract = errors.New("no active contract")

	// ErrEmptyCycle is returned when a period has no working days to pay.
	ErrEmptyCycle = errors.New("period has no working days")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the kind and key of a missing record.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound is shorthand for a *NotFoundError.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// InvalidStateError describes a rejected state transition.
type InvalidStateError struct {
	Entity  string
	ID      string
	Current string
	Action  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s: status is %s", e.Action, e.Entity, e.ID, e.Current)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// RowError is a failure tied to one input row of a batch.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownEmployee)
}

// IsConflict returns true if the error is a state or uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrDuplicateEntry)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrUnknownLeaveType) ||
		errors.Is(err, ErrNoActiveContract) ||
		errors.Is(err, ErrEmptyCycle)
}
