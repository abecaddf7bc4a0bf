/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All sentinel errors in one place. Domain packages wrap them with context
  (employee, project, stage) and callers classify with errors.Is.

ERROR CATEGORIES:
  1. Validation errors - bad input, reported before any work is done
  2. Data-integrity errors - bad billing configuration, unknown project
  3. Store errors - persistence conflicts and missing rows

SEE ALSO:
  - billing/formula.go: FormulaError wraps ErrInvalidFormula
  - settlement/result.go: RetrievalError, EmployeeFailure
  - api/handlers.go: maps classifications to HTTP status codes
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned for a missing or inverted date range.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidFormula is returned when a project's billing configuration
	// cannot be evaluated (zero divisor, missing rate, both models set).
	ErrInvalidFormula = errors.New("invalid billing formula")

	// ErrProjectNotFound is returned when a work log references a project
	// the directory doesn't know.
	ErrProjectNotFound = errors.New("project not found")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrDuplicateSettlement is returned when a settlement with the same
	// idempotency key (employee + period) already exists.
	ErrDuplicateSettlement = errors.New("settlement already exists for employee and period")

	// ErrSettlementNotFound is returned when a settlement ID is unknown.
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrInvalidStatusTransition is returned for anything but PENDING -> PAID/OVERDUE.
	ErrInvalidStatusTransition = errors.New("invalid settlement status transition")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidStatusTransition)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSettlementNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}

// IsConflict returns true if the write collided with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSettlement)
}

// IsDataIntegrity returns true if stored configuration or rows are inconsistent.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrInvalidFormula) ||
		errors.Is(err, ErrProjectNotFound)
}
