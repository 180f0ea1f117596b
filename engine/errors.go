/*
errors.go - Centralized error types for the scheduling engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every error carries a stable machine-readable code plus a human-readable
  message; callers decide retry vs. display.

ERROR CATEGORIES:
  1. Validation errors - malformed input (both/neither of employee+resource,
     missing required date on move)
  2. Not-found errors  - conflict or allocation id unresolvable
  3. State errors      - resolving an already-resolved conflict

NOT ERRORS:
  Absence overlap is a Warning, never an error. Empty query results are the
  success case; lower components never fail for "no data found".

USAGE:
  if engine.CodeOf(err) == engine.CodeAlreadyResolved { ... }
  if errors.Is(err, engine.ErrNotFound) { ... }

SEE ALSO:
  - workflow.go: validation errors on create/move/delete
  - resolve.go: state-machine errors on resolution
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR CODES - Stable, machine-readable
// =============================================================================

type Code string

const (
	CodeValidation        Code = "VALIDATION"
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyResolved   Code = "ALREADY_RESOLVED"
	CodeInvalidResolution Code = "INVALID_RESOLUTION"
	CodeNewDateRequired   Code = "NEW_DATE_REQUIRED"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category sentinel for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved is returned on a double-resolution attempt.
	// Resolution is terminal; it never silently succeeds twice.
	ErrAlreadyResolved = errors.New("conflict already resolved")

	// ErrInvalidResolution is returned for unrecognized resolution kinds.
	ErrInvalidResolution = errors.New("invalid resolution kind")
)

// =============================================================================
// STRUCTURED ERROR - Code + message, unwraps to its category sentinel
// =============================================================================

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeValidation, CodeNewDateRequired:
		return ErrValidation
	case CodeNotFound:
		return ErrNotFound
	case CodeAlreadyResolved:
		return ErrAlreadyResolved
	case CodeInvalidResolution:
		return ErrInvalidResolution
	}
	return nil
}

func validationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// CodeOf extracts the stable code from an engine error, or "" for
// repository-layer failures propagated unchanged.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid client input or
// a state-machine violation, i.e. recoverable by the caller.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAlreadyResolved) ||
		errors.Is(err, ErrInvalidResolution)
}
