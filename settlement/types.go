/*
Package settlement implements the period billing settlement engine.

PURPOSE:
  Given a date range, reconciles each eligible employee's work logs,
  attendance and approved leave against per-project billing formulas,
  producing one Summary per active employee (Builder.Compute). After
  operator review, Finalizer.Finalize persists one Record per summary and
  notifies the employee.

FLOW:
  Builder.Compute
    -> Aggregator.Aggregate (per employee, three concurrent reads)
    -> Batch{Summaries sorted by total desc, Failures}
  operator review (outside the engine)
  Finalizer.Finalize
    -> SettlementStore.CreateSettlement (idempotent on employee + period)
    -> Notifier.Send, then SettlementStore.SetNotification
    -> FinalizeResult{Succeeded, Failed, Skipped, NotAttempted}

STATE:
  Every type here is stateless between calls. Summaries and results belong
  to the caller.

SEE ALSO:
  - billing/formula.go: per-project amount
  - generic/period.go: overlap and day sets
  - store/sqlite/sqlite.go: persistence with the unique idempotency key
*/
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/generic"
)

// =============================================================================
// SUMMARY - Transient aggregation result
// =============================================================================

// ProjectEarning is the per-project line of a summary or settlement.
type ProjectEarning struct {
	ProjectID   generic.ProjectID
	ProjectName string
	Model       billing.Model
	Unit        string          // "hours" or the project's metric label
	Quantity    decimal.Decimal // summed hours or units
	Entries     int             // work log entries that contributed
	Amount      decimal.Decimal // rounded to cents
}

// AttendanceSummary counts distinct days in the period.
type AttendanceSummary struct {
	DaysPresent int
	DaysOnLeave int
}

// Summary is one employee's aggregation over one period.
type Summary struct {
	Employee   generic.Employee
	Period     generic.Period
	Details    []ProjectEarning
	Attendance AttendanceSummary
	GrandTotal decimal.Decimal
}

// HasActivity is false for an employee idle for the whole period.
func (s Summary) HasActivity() bool {
	return len(s.Details) > 0 || s.Attendance.DaysPresent > 0 || s.Attendance.DaysOnLeave > 0
}

// Finalizable reports whether the summary produces a settlement: a positive
// total or at least one project line. Leave-only summaries are reviewed but
// never settled.
func Finalizable(s Summary) bool {
	return s.GrandTotal.IsPositive() || len(s.Details) > 0
}

// =============================================================================
// SETTLEMENT RECORD - Persisted outcome
// =============================================================================

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusPaid || s == StatusOverdue
}

// NotificationState tracks the employee notification of a settlement.
// A record is created QUEUED by the run that owns it; that run moves it to
// SENT or FAILED. Only a FAILED notification is retried, by the run that
// claims it back to QUEUED.
type NotificationState string

const (
	NotificationQueued NotificationState = "QUEUED"
	NotificationSent   NotificationState = "SENT"
	NotificationFailed NotificationState = "FAILED"
)

// ValidateTransition allows PENDING -> PAID and PENDING -> OVERDUE only.
func ValidateTransition(from, to Status) error {
	if from == StatusPending && (to == StatusPaid || to == StatusOverdue) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", generic.ErrInvalidStatusTransition, from, to)
}

// Record is a finalized settlement. Breakdown, Attendance and Total are
// frozen copies of the summary; only Status and Notification change afterwards.
type Record struct {
	ID             generic.SettlementID
	IdempotencyKey string
	EmployeeID     generic.EmployeeID
	EmployeeName   string
	Period         generic.Period
	Status         Status
	Breakdown      []ProjectEarning
	Attendance     AttendanceSummary
	Total          decimal.Decimal
	Notification   NotificationState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PrimaryProject is the first breakdown line, for list displays that show a
// single project column.
func (r Record) PrimaryProject() (ProjectEarning, bool) {
	if len(r.Breakdown) == 0 {
		return ProjectEarning{}, false
	}
	return r.Breakdown[0], true
}

// Key derives the idempotency key of a settlement: one per employee per period.
func Key(employeeID generic.EmployeeID, period generic.Period) string {
	return "settlement:" + string(employeeID) + ":" + period.Key()
}

// NewRecord freezes a summary into a PENDING settlement.
func NewRecord(id generic.SettlementID, s Summary, now time.Time) Record {
	breakdown := make([]ProjectEarning, len(s.Details))
	copy(breakdown, s.Details)
	return Record{
		ID:             id,
		IdempotencyKey: Key(s.Employee.ID, s.Period),
		EmployeeID:     s.Employee.ID,
		EmployeeName:   s.Employee.Name,
		Period:         s.Period,
		Status:         StatusPending,
		Notification:   NotificationQueued,
		Breakdown:      breakdown,
		Attendance:     s.Attendance,
		Total:          s.GrandTotal,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// =============================================================================
// COLLABORATORS declared here because they carry billing/settlement types
// =============================================================================

// ProjectDirectory lists project billing configurations.
type ProjectDirectory interface {
	ListProjects(ctx context.Context) ([]billing.Project, error)
}

// SettlementStore persists settlement records. CreateSettlement must reject a
// record whose IdempotencyKey already exists with generic.ErrDuplicateSettlement,
// atomically with the insert. GetSettlementByKey returns
// generic.ErrSettlementNotFound for an unknown key. SetNotification is a
// compare-and-set: it moves the record from one state to another and reports
// false when the record was not in the from state.
type SettlementStore interface {
	CreateSettlement(ctx context.Context, r Record) error
	GetSettlementByKey(ctx context.Context, key string) (*Record, error)
	SetNotification(ctx context.Context, id generic.SettlementID, from, to NotificationState) (bool, error)
}

// Filter selects settlements in a listing. Zero fields match everything.
type Filter struct {
	EmployeeID generic.EmployeeID
	Period     *generic.Period
	Status     Status
}

// Matches applies the filter to one record.
func (f Filter) Matches(r Record) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Period != nil && (!r.Period.Start.Equal(f.Period.Start) || !r.Period.End.Equal(f.Period.End)) {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Catalog indexes projects by ID for one computation run.
type Catalog map[generic.ProjectID]billing.Project

// LoadCatalog reads the directory once.
func LoadCatalog(ctx context.Context, dir ProjectDirectory) (Catalog, error) {
	projects, err := dir.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	catalog := make(Catalog, len(projects))
	for _, p := range projects {
		catalog[p.ID] = p
	}
	return catalog, nil
}
