package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/warp/settlement-engine/generic"
)

// =============================================================================
// FINALIZER - Persist and notify, one employee at a time
// =============================================================================

// Finalizer turns reviewed summaries into settlement records.
type Finalizer struct {
	Settlements SettlementStore
	Notifier    generic.Notifier

	// AbortOnFailure stops at the first persist or notify failure; later
	// employees are reported as NotAttempted and earlier ones stay
	// committed. The default records the failure and moves on.
	AbortOnFailure bool

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() generic.SettlementID

	Logger *slog.Logger
}

// Finalize processes summaries strictly in order: persist, then notify,
// before moving to the next employee. The result is never nil. The error is
// the joined employee failures, or the context error when the run was
// cancelled between employees.
//
// Re-finalizing the same employee and period is safe: the store rejects the
// duplicate key. A settlement whose notification failed in an earlier run is
// notified again and reported as Succeeded with Renotified set; any other
// existing settlement is reported as Skipped.
func (f *Finalizer) Finalize(ctx context.Context, summaries []Summary) (*FinalizeResult, error) {
	result := &FinalizeResult{}

	for i, s := range summaries {
		if err := ctx.Err(); err != nil {
			result.NotAttempted = append(result.NotAttempted, employeeIDs(summaries[i:])...)
			return result, err
		}

		if failure := f.finalizeOne(ctx, s, result); failure != nil {
			result.fail(failure)
			f.logger().Warn("settlement finalize failed",
				"employee_id", failure.EmployeeID,
				"stage", failure.Stage,
				"error", failure.Err)
			if f.AbortOnFailure {
				result.NotAttempted = append(result.NotAttempted, employeeIDs(summaries[i+1:])...)
				break
			}
		}
	}

	f.logger().Info("settlement finalize finished",
		"requested", len(summaries),
		"succeeded", result.SucceededCount,
		"failed", len(result.Failed),
		"skipped", len(result.Skipped),
		"not_attempted", len(result.NotAttempted))
	return result, result.Err()
}

func (f *Finalizer) finalizeOne(ctx context.Context, s Summary, result *FinalizeResult) *EmployeeFailure {
	fail := func(stage Stage, err error) *EmployeeFailure {
		return &EmployeeFailure{EmployeeID: s.Employee.ID, EmployeeName: s.Employee.Name, Stage: stage, Err: err}
	}

	if !Finalizable(s) {
		result.Skipped = append(result.Skipped, Skipped{EmployeeID: s.Employee.ID, Reason: SkipZeroValue})
		return nil
	}
	if err := s.Period.Validate(); err != nil {
		return fail(StageValidate, err)
	}

	record := NewRecord(f.newID(), s, f.now())
	renotify := false
	if err := f.Settlements.CreateSettlement(ctx, record); err != nil {
		if !errors.Is(err, generic.ErrDuplicateSettlement) {
			return fail(StagePersist, fmt.Errorf("failed to persist settlement: %w", err))
		}
		existing, claimed, err := f.claimFailedNotification(ctx, record.IdempotencyKey)
		if err != nil {
			return fail(StageNotify, err)
		}
		if !claimed {
			result.Skipped = append(result.Skipped, Skipped{EmployeeID: s.Employee.ID, Reason: SkipAlreadyFinalized})
			f.logger().Info("settlement already finalized", "employee_id", s.Employee.ID, "key", record.IdempotencyKey)
			return nil
		}
		// The stored record is what was settled; the message reflects it.
		record = *existing
		renotify = true
	}

	if err := f.Notifier.Send(ctx, s.Employee.ID, Message(record)); err != nil {
		f.setNotification(ctx, record, NotificationFailed)
		return fail(StageNotify, fmt.Errorf("settlement %s persisted but notification failed: %w", record.ID, err))
	}
	f.setNotification(ctx, record, NotificationSent)

	result.succeed(Finalized{EmployeeID: s.Employee.ID, SettlementID: record.ID, Renotified: renotify})
	f.logger().Info("settlement finalized",
		"employee_id", s.Employee.ID,
		"settlement_id", record.ID,
		"renotified", renotify,
		"total", generic.FormatMoney(record.Total))
	return nil
}

// claimFailedNotification loads the settlement behind key and, when its
// notification failed earlier, claims it for this run.
func (f *Finalizer) claimFailedNotification(ctx context.Context, key string) (*Record, bool, error) {
	existing, err := f.Settlements.GetSettlementByKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load settlement %s: %w", key, err)
	}
	if existing.Notification != NotificationFailed {
		return existing, false, nil
	}
	claimed, err := f.Settlements.SetNotification(ctx, existing.ID, NotificationFailed, NotificationQueued)
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim notification for settlement %s: %w", existing.ID, err)
	}
	return existing, claimed, nil
}

// setNotification records the outcome of a send. A record left QUEUED is not
// retried, so the failure is logged for the operator.
func (f *Finalizer) setNotification(ctx context.Context, r Record, to NotificationState) {
	if _, err := f.Settlements.SetNotification(context.WithoutCancel(ctx), r.ID, NotificationQueued, to); err != nil {
		f.logger().Error("failed to record notification state",
			"employee_id", r.EmployeeID,
			"settlement_id", r.ID,
			"state", to,
			"error", err)
	}
}

func (f *Finalizer) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now().UTC()
}

func (f *Finalizer) newID() generic.SettlementID {
	if f.NewID != nil {
		return f.NewID()
	}
	return generic.SettlementID(uuid.NewString())
}

func (f *Finalizer) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func employeeIDs(summaries []Summary) []generic.EmployeeID {
	ids := make([]generic.EmployeeID, len(summaries))
	for i, s := range summaries {
		ids[i] = s.Employee.ID
	}
	return ids
}

// Message is the notification text sent to the employee.
func Message(r Record) string {
	return fmt.Sprintf(
		"Your settlement for %s to %s is ready: total %s across %d project(s). Days present: %d. Days on leave: %d.",
		r.Period.Start, r.Period.End,
		generic.FormatMoney(r.Total), len(r.Breakdown),
		r.Attendance.DaysPresent, r.Attendance.DaysOnLeave,
	)
}
