/*
Package generic provides the shared vocabulary of the settlement engine.

PURPOSE:
  Holds the types every other package speaks: calendar days, periods,
  employees and the three per-employee data sources (work logs, attendance,
  leave). It knows nothing about billing formulas or settlement records;
  those live in the billing and settlement packages.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers (EmployeeID, ProjectID) so IDs can't be mixed up
  - Employee: an identity from the employee directory
  - WorkLog, Attendance, Leave: raw rows from the external stores
  - RoundMoney: the single rounding rule for monetary amounts

DESIGN PRINCIPLES:
  1. Precision: quantities and money use decimal.Decimal, never float64
  2. Day granularity: all dates are TimePoints (see time.go)
  3. Read-only inputs: nothing here mutates the rows it receives

SEE ALSO:
  - period.go: Period, OverlapDays, DaySet
  - store.go: Interfaces for the external data sources
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ProjectID string
type SettlementID string

// =============================================================================
// EMPLOYEE
// =============================================================================

// Role restricts which employees are eligible for settlement.
type Role string

const (
	RoleWorker  Role = "worker"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

type Employee struct {
	ID    EmployeeID
	Name  string
	Email string
	Role  Role
}

// =============================================================================
// DATA SOURCES
// =============================================================================

// WorkLog is one submitted entry. Several entries for the same
// employee/date/project are revisions and are summed, not overwritten.
type WorkLog struct {
	ID            string
	EmployeeID    EmployeeID
	ProjectID     ProjectID
	Date          TimePoint
	HoursWorked   *decimal.Decimal // nil when not reported
	AchievedCount *decimal.Decimal // nil when not reported
	SubmittedAt   time.Time
}

// Attendance is one clock-in/clock-out record.
type Attendance struct {
	ID         string
	EmployeeID EmployeeID
	Date       TimePoint
	ClockIn    *time.Time
	ClockOut   *time.Time
}

// Present is true when the record has a clock-in.
func (a Attendance) Present() bool { return a.ClockIn != nil && !a.ClockIn.IsZero() }

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "PENDING"
	LeaveApproved LeaveStatus = "APPROVED"
	LeaveRejected LeaveStatus = "REJECTED"
)

// Leave is a leave request spanning [Start, End].
type Leave struct {
	ID         string
	EmployeeID EmployeeID
	Start      TimePoint
	End        TimePoint
	Status     LeaveStatus
}

// Span returns the leave as a period.
func (l Leave) Span() Period { return Period{Start: l.Start, End: l.End} }

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places kept on monetary amounts.
const MoneyPlaces = 2

// RoundMoney rounds half-up to cents. Amounts are never negative here, so
// decimal's half-away-from-zero is half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// Dec is a shorthand for optional decimal fields.
func Dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// =============================================================================
// NOTIFICATION
// =============================================================================

// Notification is a delivered message, as kept in an employee's inbox.
type Notification struct {
	ID          string
	RecipientID EmployeeID
	Message     string
	CreatedAt   time.Time
}
