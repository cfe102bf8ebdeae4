/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors - Caller contract violations (mixed keys, bad event types)
  2. Store errors - Missing or duplicate rows
  3. Coordination errors - Per-key locks that could not be taken

NOT ERRORS:
  - Unknown jurisdiction codes resolve to the default overtime policy.
  - Reconciling an empty event set yields "no aggregate", not an error.

USAGE:
  if errors.Is(err, generic.ErrInvalidInput) {
      // 400 to the caller
  }

SEE ALSO:
  - attendance/reconcile.go: Raises InvalidInputError
  - api/handlers.go: Maps errors to HTTP status codes
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
	// ErrInvalidInput is returned when a caller violates an input contract,
	// e.g. events for several users passed to one reconciliation call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEventNotFound is returned when a referenced raw event doesn't exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrDuplicateEvent is returned when an event ID is already recorded.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrPolicyNotFound is returned when an org has no effective policy document.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrLocationNotFound is returned when a referenced location doesn't exist.
	ErrLocationNotFound = errors.New("location not found")

	// ErrLockNotAcquired is returned when a per-key lock is held elsewhere.
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError describes which part of the input was rejected.
type InvalidInputError struct {
	Field   string
	Reason  string
	EventID EventID // empty when the problem is not tied to one event
}

func (e *InvalidInputError) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("invalid input: %s: %s (event %s)", e.Field, e.Reason, e.EventID)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockNotAcquired)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDuplicateEvent) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrLocationNotFound)
}
