package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/generic"
)

// LeaveCounting selects how leave days are counted across several approved
// requests.
type LeaveCounting int

const (
	// LeaveUnion counts each calendar day once, however many approved
	// requests cover it.
	LeaveUnion LeaveCounting = iota
	// LeaveSumPerRequest adds every request's overlap independently, so
	// overlapping requests count shared days twice. Kept for reconciling
	// against settlements produced before LeaveUnion.
	LeaveSumPerRequest
)

// =============================================================================
// AGGREGATOR - One employee, one period
// =============================================================================

// Aggregator folds one employee's work logs, attendance and leave into a
// Summary.
type Aggregator struct {
	WorkLogs   generic.WorkLogStore
	Attendance generic.AttendanceStore
	Leave      generic.LeaveStore

	LeaveCounting LeaveCounting

	// RetrievalTimeout bounds each of the three reads. Zero means no limit.
	RetrievalTimeout time.Duration

	Logger *slog.Logger
}

// Aggregate returns the employee's summary, or nil when the employee had no
// project work, no presence day and no leave day in the period.
func (a *Aggregator) Aggregate(ctx context.Context, catalog Catalog, emp generic.Employee, period generic.Period) (*Summary, error) {
	in, err := a.fetch(ctx, emp.ID, period)
	if err != nil {
		return nil, err
	}

	details, err := earnings(catalog, in.logs, period)
	if err != nil {
		return nil, fmt.Errorf("employee %s: %w", emp.ID, err)
	}

	summary := &Summary{
		Employee: emp,
		Period:   period,
		Details:  details,
		Attendance: AttendanceSummary{
			DaysPresent: presenceDays(in.attendance, period),
			DaysOnLeave: leaveDays(in.leave, period, a.LeaveCounting),
		},
		GrandTotal: decimal.Zero,
	}
	for _, d := range details {
		summary.GrandTotal = summary.GrandTotal.Add(d.Amount)
	}

	if !summary.HasActivity() {
		a.logger().Debug("employee idle for period", "employee_id", emp.ID, "period", period.String())
		return nil, nil
	}
	return summary, nil
}

type inputs struct {
	logs       []generic.WorkLog
	attendance []generic.Attendance
	leave      []generic.Leave
}

// fetch issues the three independent reads concurrently and returns once all
// of them have finished. The first failure cancels the others.
func (a *Aggregator) fetch(ctx context.Context, id generic.EmployeeID, period generic.Period) (inputs, error) {
	var in inputs
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rctx, cancel := a.retrievalContext(gctx)
		defer cancel()
		logs, err := a.WorkLogs.WorkLogs(rctx, id, period.Start, period.End)
		if err != nil {
			return &RetrievalError{EmployeeID: id, Source: "work_logs", Err: err}
		}
		in.logs = logs
		return nil
	})
	g.Go(func() error {
		rctx, cancel := a.retrievalContext(gctx)
		defer cancel()
		records, err := a.Attendance.Attendance(rctx, id, period.Start, period.End)
		if err != nil {
			return &RetrievalError{EmployeeID: id, Source: "attendance", Err: err}
		}
		in.attendance = records
		return nil
	})
	g.Go(func() error {
		rctx, cancel := a.retrievalContext(gctx)
		defer cancel()
		leave, err := a.Leave.ApprovedLeave(rctx, id, period.Start, period.End)
		if err != nil {
			return &RetrievalError{EmployeeID: id, Source: "leave", Err: err}
		}
		in.leave = leave
		return nil
	})

	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}

func (a *Aggregator) retrievalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.RetrievalTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.RetrievalTimeout)
}

func (a *Aggregator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// =============================================================================
// FOLDS
// =============================================================================

// presenceDays counts distinct dates with a clock-in.
func presenceDays(records []generic.Attendance, period generic.Period) int {
	days := generic.NewDaySet()
	for _, r := range records {
		if r.Present() && period.Contains(r.Date) {
			days.Add(r.Date)
		}
	}
	return days.Len()
}

// leaveDays counts approved leave days inside the period.
func leaveDays(requests []generic.Leave, period generic.Period, mode LeaveCounting) int {
	if mode == LeaveSumPerRequest {
		total := 0
		for _, l := range requests {
			if l.Status == generic.LeaveApproved {
				total += generic.OverlapDays(l.Span(), period)
			}
		}
		return total
	}

	days := generic.NewDaySet()
	for _, l := range requests {
		if l.Status != generic.LeaveApproved {
			continue
		}
		if shared, ok := l.Span().Intersect(period); ok {
			days.AddPeriod(shared)
		}
	}
	return days.Len()
}

type projectGroup struct {
	project  billing.Project
	quantity decimal.Decimal
	entries  int
}

// earnings groups work logs by project, sums the billable quantity across
// every entry (revisions included) and evaluates each project once.
func earnings(catalog Catalog, logs []generic.WorkLog, period generic.Period) ([]ProjectEarning, error) {
	groups := make(map[generic.ProjectID]*projectGroup)
	for _, log := range logs {
		if !period.Contains(log.Date) {
			continue
		}
		project, ok := catalog[log.ProjectID]
		if !ok {
			return nil, fmt.Errorf("work log %s: %w: %s", log.ID, generic.ErrProjectNotFound, log.ProjectID)
		}
		qty, ok := billableQuantity(project, log)
		if !ok {
			continue
		}
		g := groups[project.ID]
		if g == nil {
			g = &projectGroup{project: project, quantity: decimal.Zero}
			groups[project.ID] = g
		}
		g.quantity = g.quantity.Add(qty)
		g.entries++
	}

	details := make([]ProjectEarning, 0, len(groups))
	for _, g := range groups {
		amount, err := billing.Evaluate(g.project, g.quantity)
		if err != nil {
			return nil, err
		}
		details = append(details, ProjectEarning{
			ProjectID:   g.project.ID,
			ProjectName: g.project.Name,
			Model:       g.project.Model,
			Unit:        g.project.Unit(),
			Quantity:    g.quantity,
			Entries:     g.entries,
			Amount:      amount,
		})
	}
	sort.Slice(details, func(i, j int) bool {
		if details[i].ProjectName != details[j].ProjectName {
			return details[i].ProjectName < details[j].ProjectName
		}
		return details[i].ProjectID < details[j].ProjectID
	})
	return details, nil
}

// billableQuantity picks the field the project bills on. Entries with a
// missing or non-positive value are excluded; a unit-based entry's hours are
// never billed on their own.
func billableQuantity(p billing.Project, log generic.WorkLog) (decimal.Decimal, bool) {
	var v *decimal.Decimal
	switch p.Model {
	case billing.ModelUnitBased:
		v = log.AchievedCount
	case billing.ModelTimeBased:
		v = log.HoursWorked
	}
	if v == nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return *v, true
}
