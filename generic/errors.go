/*
errors.go - Centralized error types for the generic engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these (or wrap them) so callers can use errors.Is.

ERROR CATEGORIES:
  1. Configuration errors - A required input is missing or malformed.
     Always a caller defect, never recovered locally.
  2. Recursion errors - A variable re-entered itself beyond its explicit
     extra-cycle budget.
  3. Store errors - Persistence failures and lookups of unknown records.

USAGE:
  if errors.Is(err, generic.ErrConfiguration) {
      // caller supplied an incomplete request
  }

SEE ALSO:
  - simulation.go: Raises UnboundRecursionError
  - cotsoc/: Raises ConfigurationError
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
	// ErrConfiguration is returned when a required input is missing.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnboundRecursion is returned when a variable requests its own value
	// more times than its extra-cycle budget permits.
	ErrUnboundRecursion = errors.New("unbound recursion")

	// ErrUnknownVariable is returned when a variable has not been registered.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrInvalidPeriod is returned when a period is malformed.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrIndividualNotFound is returned when a referenced individual doesn't exist.
	ErrIndividualNotFound = errors.New("individual not found")

	// ErrRunNotFound is returned when a contribution run doesn't exist.
	ErrRunNotFound = errors.New("contribution run not found")

	// ErrDuplicateRun is returned when a run ID is appended twice.
	ErrDuplicateRun = errors.New("duplicate contribution run")

	// ErrNoLegislation is returned when no snapshot is valid at a date.
	ErrNoLegislation = errors.New("no legislation in force")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError names the missing or malformed input.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration error: %s is required", e.Field)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Missing is shorthand for a required input that was not supplied.
func Missing(field string) *ConfigurationError {
	return &ConfigurationError{Field: field}
}

// UnboundRecursionError reports the variable, the period it was requested
// for, and the budget that was exceeded.
type UnboundRecursionError struct {
	Variable       string
	Period         Period
	MaxExtraCycles int
	InFlight       int
}

func (e *UnboundRecursionError) Error() string {
	return fmt.Sprintf("unbound recursion: %s for %s re-entered with %d in flight (max extra cycles %d)",
		e.Variable, e.Period, e.InFlight, e.MaxExtraCycles)
}

func (e *UnboundRecursionError) Unwrap() error {
	return ErrUnboundRecursion
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfiguration returns true for missing or malformed inputs.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrUnknownVariable) ||
		errors.Is(err, ErrNoLegislation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrIndividualNotFound) ||
		errors.Is(err, ErrRunNotFound)
}
