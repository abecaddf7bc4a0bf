/*
store.go - Interfaces for the external data sources

PURPOSE:
  Defines the read side the engine consumes. Each source is queried per
  employee and date range; the engine never writes through these.

KEY INTERFACES:
  EmployeeDirectory: Eligible employees (worker role)
  WorkLogStore:      Work log entries by employee + range
  AttendanceStore:   Attendance records by employee + range
  LeaveStore:        APPROVED leave overlapping a range
  Notifier:          Fire-and-forget message to an employee

  Project lookup and settlement persistence return billing/settlement types,
  so those interfaces are declared by the settlement package.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing
*/
package generic

import "context"

// EmployeeDirectory lists the employees eligible for settlement.
type EmployeeDirectory interface {
	ListEligible(ctx context.Context) ([]Employee, error)
}

// WorkLogStore returns every entry dated within [from, to], revisions included.
type WorkLogStore interface {
	WorkLogs(ctx context.Context, employeeID EmployeeID, from, to TimePoint) ([]WorkLog, error)
}

// AttendanceStore returns every record dated within [from, to].
type AttendanceStore interface {
	Attendance(ctx context.Context, employeeID EmployeeID, from, to TimePoint) ([]Attendance, error)
}

// LeaveStore returns APPROVED leave whose span overlaps [from, to].
type LeaveStore interface {
	ApprovedLeave(ctx context.Context, employeeID EmployeeID, from, to TimePoint) ([]Leave, error)
}

// Notifier delivers a text message to an employee. A returned error means
// the message was not accepted.
type Notifier interface {
	Send(ctx context.Context, recipientID EmployeeID, message string) error
}
