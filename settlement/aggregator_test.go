package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/generic/store"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// FIXTURES
// =============================================================================

var (
	day = generic.MustParseDate
	dec = decimal.RequireFromString
)

func worker(id, name string) generic.Employee {
	return generic.Employee{ID: generic.EmployeeID(id), Name: name, Role: generic.RoleWorker}
}

func hours(emp, project, date, h string) generic.WorkLog {
	return generic.WorkLog{
		EmployeeID:  generic.EmployeeID(emp),
		ProjectID:   generic.ProjectID(project),
		Date:        day(date),
		HoursWorked: generic.Dec(h),
	}
}

func units(emp, project, date, n string) generic.WorkLog {
	return generic.WorkLog{
		EmployeeID:    generic.EmployeeID(emp),
		ProjectID:     generic.ProjectID(project),
		Date:          day(date),
		AchievedCount: generic.Dec(n),
	}
}

func present(emp, date string) generic.Attendance {
	in := day(date).Time.Add(9 * time.Hour)
	return generic.Attendance{EmployeeID: generic.EmployeeID(emp), Date: day(date), ClockIn: &in}
}

func leave(emp, start, end string, status generic.LeaveStatus) generic.Leave {
	return generic.Leave{EmployeeID: generic.EmployeeID(emp), Start: day(start), End: day(end), Status: status}
}

func newAggregator(m *store.Memory) *settlement.Aggregator {
	return &settlement.Aggregator{WorkLogs: m, Attendance: m, Leave: m}
}

func catalogOf(projects ...billing.Project) settlement.Catalog {
	c := settlement.Catalog{}
	for _, p := range projects {
		c[p.ID] = p
	}
	return c
}

func mustPeriod(t *testing.T, start, end string) generic.Period {
	t.Helper()
	p, err := generic.NewPeriod(day(start), day(end))
	require.NoError(t, err)
	return p
}

// febScenario loads one worker with 200 units at 0.5 per unit, 18 presence
// days and leave that overlaps February on 2 days.
func febScenario(m *store.Memory) billing.Project {
	survey := billing.UnitBased("survey", "Survey Entry", "forms", dec("1"), dec("0.5"))
	m.AddProject(survey)
	m.AddEmployee(worker("emp-ana", "Ana"))

	m.AddWorkLog(units("emp-ana", "survey", "2024-02-05", "80"))
	m.AddWorkLog(units("emp-ana", "survey", "2024-02-14", "70"))
	m.AddWorkLog(units("emp-ana", "survey", "2024-02-26", "50"))

	m.AddLeave(leave("emp-ana", "2024-01-30", "2024-02-02", generic.LeaveApproved))

	d := day("2024-02-05")
	for added := 0; added < 18; d = d.AddDays(1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		m.AddAttendance(present("emp-ana", d.String()))
		added++
	}
	return survey
}

// =============================================================================
// AGGREGATE
// =============================================================================

func TestAggregate_FebruaryScenario(t *testing.T) {
	// GIVEN: The February 2024 worker
	m := store.NewMemory()
	survey := febScenario(m)

	// WHEN: Aggregating the whole month
	s, err := newAggregator(m).Aggregate(context.Background(), catalogOf(survey),
		worker("emp-ana", "Ana"), mustPeriod(t, "2024-02-01", "2024-02-29"))

	// THEN: One detail worth 100.00, 18 present, 2 on leave
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Len(t, s.Details, 1)
	assert.Equal(t, "100.00", s.Details[0].Amount.StringFixed(2))
	assert.Equal(t, "200", s.Details[0].Quantity.String())
	assert.Equal(t, 3, s.Details[0].Entries)
	assert.Equal(t, "forms", s.Details[0].Unit)
	assert.Equal(t, settlement.AttendanceSummary{DaysPresent: 18, DaysOnLeave: 2}, s.Attendance)
	assert.Equal(t, "100.00", s.GrandTotal.StringFixed(2))
}

func TestAggregate_IdleEmployeeIsNil(t *testing.T) {
	m := store.NewMemory()
	// Activity outside the period only.
	m.AddWorkLog(hours("emp-1", "support", "2024-01-31", "8"))
	m.AddAttendance(present("emp-1", "2024-03-01"))
	m.AddLeave(leave("emp-1", "2024-01-01", "2024-01-31", generic.LeaveApproved))

	s, err := newAggregator(m).Aggregate(context.Background(),
		catalogOf(billing.TimeBased("support", "Support", dec("10"))),
		worker("emp-1", "One"), mustPeriod(t, "2024-02-01", "2024-02-29"))

	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestAggregate_RevisionsAreSummed(t *testing.T) {
	// GIVEN: Two submissions for the same day and project
	m := store.NewMemory()
	m.AddWorkLog(units("emp-1", "labeling", "2024-03-11", "1500"))
	m.AddWorkLog(units("emp-1", "labeling", "2024-03-11", "1000"))
	labeling := billing.UnitBased("labeling", "Labeling", "labels", dec("1000"), dec("50"))

	s, err := newAggregator(m).Aggregate(context.Background(), catalogOf(labeling),
		worker("emp-1", "One"), mustPeriod(t, "2024-03-01", "2024-03-31"))

	// THEN: 2500 units -> 125.00
	require.NoError(t, err)
	require.Len(t, s.Details, 1)
	assert.Equal(t, 2, s.Details[0].Entries)
	assert.Equal(t, "125.00", s.Details[0].Amount.StringFixed(2))
}

func TestAggregate_RoundsOncePerProject(t *testing.T) {
	// GIVEN: Three entries of 1 unit at 1/3 each. Per-entry rounding would
	// give 3 x 0.33 = 0.99.
	m := store.NewMemory()
	for _, date := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		m.AddWorkLog(units("emp-1", "thirds", date, "1"))
	}
	thirds := billing.UnitBased("thirds", "Thirds", "items", dec("3"), dec("1"))

	s, err := newAggregator(m).Aggregate(context.Background(), catalogOf(thirds),
		worker("emp-1", "One"), mustPeriod(t, "2024-03-01", "2024-03-31"))

	require.NoError(t, err)
	assert.Equal(t, "1.00", s.GrandTotal.StringFixed(2))
}

func TestAggregate_MultiProjectGrandTotal(t *testing.T) {
	m := store.NewMemory()
	m.AddWorkLog(hours("emp-1", "support", "2024-03-04", "8"))
	m.AddWorkLog(hours("emp-1", "support", "2024-03-05", "7.5"))
	m.AddWorkLog(hours("emp-1", "field", "2024-03-06", "6"))
	// Zero and missing quantities create no project line.
	m.AddWorkLog(hours("emp-1", "idle-project", "2024-03-07", "0"))
	m.AddWorkLog(units("emp-1", "support", "2024-03-08", "40"))

	catalog := catalogOf(
		billing.TimeBased("support", "Support Desk", dec("12.50")),
		billing.TimeBased("field", "Field Visits", dec("18")),
		billing.TimeBased("idle-project", "Idle", dec("99")),
	)
	s, err := newAggregator(m).Aggregate(context.Background(), catalog,
		worker("emp-1", "One"), mustPeriod(t, "2024-03-01", "2024-03-31"))

	require.NoError(t, err)
	require.Len(t, s.Details, 2)
	// Sorted by project name.
	assert.Equal(t, generic.ProjectID("field"), s.Details[0].ProjectID)
	assert.Equal(t, "108.00", s.Details[0].Amount.StringFixed(2))
	assert.Equal(t, generic.ProjectID("support"), s.Details[1].ProjectID)
	assert.Equal(t, "193.75", s.Details[1].Amount.StringFixed(2))
	assert.Equal(t, 2, s.Details[1].Entries)
	assert.Equal(t, "301.75", s.GrandTotal.StringFixed(2))
}

func TestAggregate_LeaveCounting(t *testing.T) {
	// GIVEN: Two approved requests sharing Mar 20-22 and one rejected request
	m := store.NewMemory()
	m.AddLeave(leave("emp-1", "2024-03-18", "2024-03-22", generic.LeaveApproved))
	m.AddLeave(leave("emp-1", "2024-03-20", "2024-03-26", generic.LeaveApproved))
	m.AddLeave(leave("emp-1", "2024-03-01", "2024-03-05", generic.LeaveRejected))
	m.AddLeave(leave("emp-1", "2024-03-06", "2024-03-08", generic.LeavePending))
	p := mustPeriod(t, "2024-03-01", "2024-03-31")

	// WHEN: Counting as a union
	union, err := newAggregator(m).Aggregate(context.Background(), settlement.Catalog{}, worker("emp-1", "One"), p)
	require.NoError(t, err)

	// THEN: Shared days count once
	assert.Equal(t, 9, union.Attendance.DaysOnLeave)
	assert.True(t, union.GrandTotal.IsZero())
	assert.Empty(t, union.Details)

	// WHEN: Counting per request
	agg := newAggregator(m)
	agg.LeaveCounting = settlement.LeaveSumPerRequest
	summed, err := agg.Aggregate(context.Background(), settlement.Catalog{}, worker("emp-1", "One"), p)
	require.NoError(t, err)

	// THEN: Shared days count twice
	assert.Equal(t, 12, summed.Attendance.DaysOnLeave)
}

func TestAggregate_PresenceCountsDistinctDays(t *testing.T) {
	m := store.NewMemory()
	m.AddAttendance(present("emp-1", "2024-03-04"))
	m.AddAttendance(present("emp-1", "2024-03-04"))
	m.AddAttendance(present("emp-1", "2024-03-05"))
	// No clock-in: not present.
	m.AddAttendance(generic.Attendance{EmployeeID: "emp-1", Date: day("2024-03-06")})

	s, err := newAggregator(m).Aggregate(context.Background(), settlement.Catalog{},
		worker("emp-1", "One"), mustPeriod(t, "2024-03-01", "2024-03-31"))

	require.NoError(t, err)
	assert.Equal(t, 2, s.Attendance.DaysPresent)
}

func TestAggregate_UnknownProject(t *testing.T) {
	m := store.NewMemory()
	m.AddWorkLog(hours("emp-1", "ghost", "2024-03-04", "8"))

	_, err := newAggregator(m).Aggregate(context.Background(), settlement.Catalog{},
		worker("emp-1", "One"), mustPeriod(t, "2024-03-01", "2024-03-31"))

	assert.ErrorIs(t, err, generic.ErrProjectNotFound)
}

func TestAggregate_InvalidFormula(t *testing.T) {
	m := store.NewMemory()
	m.AddWorkLog(units("emp-1", "broken", "2024-03-04", "300"))
	broken := billing.UnitBased("broken", "Broken", "rows", decimal.Zero, dec("10"))

	_, err := newAggregator(m).Aggregate(context.Background(), catalogOf(broken),
		worker("emp-1", "One"), mustPeriod(t, "2024-03-01", "2024-03-31"))

	assert.ErrorIs(t, err, generic.ErrInvalidFormula)
}

func TestAggregate_RetrievalFailureNamesSource(t *testing.T) {
	m := store.NewMemory()
	boom := errors.New("connection reset")
	m.Fail(store.OpAttendance, "emp-1", boom)

	_, err := newAggregator(m).Aggregate(context.Background(), settlement.Catalog{},
		worker("emp-1", "One"), mustPeriod(t, "2024-03-01", "2024-03-31"))

	var re *settlement.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "attendance", re.Source)
	assert.Equal(t, generic.EmployeeID("emp-1"), re.EmployeeID)
	assert.ErrorIs(t, err, boom)
}

// slowWorkLogs blocks until the read is cancelled.
type slowWorkLogs struct{}

func (slowWorkLogs) WorkLogs(ctx context.Context, _ generic.EmployeeID, _, _ generic.TimePoint) ([]generic.WorkLog, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAggregate_RetrievalTimeout(t *testing.T) {
	m := store.NewMemory()
	agg := &settlement.Aggregator{
		WorkLogs:         slowWorkLogs{},
		Attendance:       m,
		Leave:            m,
		RetrievalTimeout: 20 * time.Millisecond,
	}

	_, err := agg.Aggregate(context.Background(), settlement.Catalog{},
		worker("emp-1", "One"), mustPeriod(t, "2024-03-01", "2024-03-31"))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var re *settlement.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "work_logs", re.Source)
}
