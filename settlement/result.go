package settlement

import (
	"errors"
	"fmt"

	"github.com/warp/settlement-engine/generic"
)

// Stage names where an employee's pipeline failed.
type Stage string

const (
	StageAggregate Stage = "aggregate"
	StageValidate  Stage = "validate"
	StagePersist   Stage = "persist"
	StageNotify    Stage = "notify"
)

// RetrievalError reports which data source failed for an employee.
type RetrievalError struct {
	EmployeeID generic.EmployeeID
	Source     string // "work_logs", "attendance", "leave"
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieving %s for employee %s: %v", e.Source, e.EmployeeID, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// EmployeeFailure is the failed branch of one employee's tagged result.
type EmployeeFailure struct {
	EmployeeID   generic.EmployeeID
	EmployeeName string
	Stage        Stage
	Err          error
}

func (e *EmployeeFailure) Error() string {
	return fmt.Sprintf("employee %s failed at %s: %v", e.EmployeeID, e.Stage, e.Err)
}

func (e *EmployeeFailure) Unwrap() error { return e.Err }

// =============================================================================
// COMPUTE RESULT
// =============================================================================

// Batch is the partitioned outcome of Builder.Compute.
type Batch struct {
	Period    generic.Period
	Summaries []Summary
	Failures  []*EmployeeFailure
}

// Complete is true when no employee failed.
func (b *Batch) Complete() bool { return len(b.Failures) == 0 }

// Err joins every failure, or nil.
func (b *Batch) Err() error { return joinFailures(b.Failures) }

// =============================================================================
// FINALIZE RESULT
// =============================================================================

// SkipReason explains why a summary produced no new settlement.
type SkipReason string

const (
	SkipZeroValue        SkipReason = "zero_value"
	SkipAlreadyFinalized SkipReason = "already_finalized"
)

// Finalized is one employee whose settlement exists and whose notification
// went out in this run. Renotified marks a settlement persisted by an earlier
// run whose notification failed and was delivered now.
type Finalized struct {
	EmployeeID   generic.EmployeeID
	SettlementID generic.SettlementID
	Renotified   bool
}

type Skipped struct {
	EmployeeID generic.EmployeeID
	Reason     SkipReason
}

// FinalizeResult is the partitioned outcome of Finalizer.Finalize.
// SucceededCount == len(Succeeded); FailedAtEmployeeID is the first failure.
type FinalizeResult struct {
	SucceededCount     int
	FailedAtEmployeeID generic.EmployeeID
	Succeeded          []Finalized
	Failed             []*EmployeeFailure
	Skipped            []Skipped
	NotAttempted       []generic.EmployeeID
}

// Err joins every failure, or nil.
func (r *FinalizeResult) Err() error { return joinFailures(r.Failed) }

func (r *FinalizeResult) succeed(f Finalized) {
	r.Succeeded = append(r.Succeeded, f)
	r.SucceededCount = len(r.Succeeded)
}

func (r *FinalizeResult) fail(f *EmployeeFailure) {
	if len(r.Failed) == 0 {
		r.FailedAtEmployeeID = f.EmployeeID
	}
	r.Failed = append(r.Failed, f)
}

func joinFailures(failures []*EmployeeFailure) error {
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
