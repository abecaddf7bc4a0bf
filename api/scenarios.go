/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates employees, projects,
	work logs, attendance and leave for one period, ready for a preview.

AVAILABLE SCENARIOS:

	february-2024:  One worker, one unit-based project, leave clipped at
	                the period start. Settles to exactly 100.00.
	mixed-team:     Time-based and unit-based projects, a multi-project
	                worker, revised submissions, overlapping leave, an idle
	                worker and a manager who is never settled.
	broken-config:  A unit-based project stored with a zero divisor. Only
	                the worker who logged on it fails; the rest settle.

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create projects via factory JSON
 3. Create employees
 4. Add work logs, attendance and leave for the scenario's period

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "february-2024"}

	POST /api/settlements/preview
	{"period_start": "2024-02-01", "period_end": "2024-02-29"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description, period
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Preview and finalize handlers
  - factory/project.go: Project JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/factory"
	"github.com/warp/settlement-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "february-2024",
		Name:        "February 2024",
		Description: "One worker on a per-unit project: 200 units at 0.5 each, 18 days present, 2 days on leave",
		PeriodStart: "2024-02-01",
		PeriodEnd:   "2024-02-29",
	},
	{
		ID:          "mixed-team",
		Name:        "Mixed Team",
		Description: "Hourly and per-unit projects, revised submissions, overlapping leave, idle and ineligible employees",
		PeriodStart: "2024-03-01",
		PeriodEnd:   "2024-03-31",
	},
	{
		ID:          "broken-config",
		Name:        "Broken Billing Config",
		Description: "A project with a zero divisor fails one worker while the rest of the team settles",
		PeriodStart: "2024-04-01",
		PeriodEnd:   "2024-04-30",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%q", req.ScenarioID))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

var errUnknownScenario = errors.New("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var loader func(context.Context) error
	switch id {
	case "february-2024":
		loader = h.loadFebruaryScenario
	case "mixed-team":
		loader = h.loadMixedTeamScenario
	case "broken-config":
		loader = h.loadBrokenConfigScenario
	default:
		return errUnknownScenario
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	if err := loader(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	h.Logger.Info("scenario loaded", "scenario", id)
	return nil
}

// =============================================================================
// SCENARIO: FEBRUARY 2024
// =============================================================================

func (h *Handler) loadFebruaryScenario(ctx context.Context) error {
	if err := h.createProjectFromJSON(ctx,
		factory.UnitBasedJSON("survey-entry", "Survey Entry", "forms", "1", "0.5")); err != nil {
		return err
	}
	if err := h.Store.SaveEmployee(ctx, generic.Employee{
		ID: "emp-ana", Name: "Ana Ruiz", Email: "ana@example.com", Role: generic.RoleWorker,
	}); err != nil {
		return err
	}

	// 80 + 70 + 50 = 200 forms
	for _, wl := range []struct {
		date  string
		count string
	}{
		{"2024-02-05", "80"},
		{"2024-02-14", "70"},
		{"2024-02-26", "50"},
	} {
		if err := h.Store.SaveWorkLog(ctx, generic.WorkLog{
			EmployeeID:    "emp-ana",
			ProjectID:     "survey-entry",
			Date:          generic.MustParseDate(wl.date),
			AchievedCount: generic.Dec(wl.count),
		}); err != nil {
			return err
		}
	}

	// Leave starts in January; only Feb 1 and Feb 2 fall in the period.
	if err := h.Store.SaveLeave(ctx, generic.Leave{
		EmployeeID: "emp-ana",
		Start:      generic.MustParseDate("2024-01-30"),
		End:        generic.MustParseDate("2024-02-02"),
		Status:     generic.LeaveApproved,
	}); err != nil {
		return err
	}

	// 18 weekdays present, from Feb 5 onwards.
	return h.addWeekdayAttendance(ctx, "emp-ana", generic.MustParseDate("2024-02-05"), 18)
}

// =============================================================================
// SCENARIO: MIXED TEAM
// =============================================================================

func (h *Handler) loadMixedTeamScenario(ctx context.Context) error {
	projects := []string{
		factory.TimeBasedJSON("support-desk", "Support Desk", "12.50"),
		factory.TimeBasedJSON("field-visits", "Field Visits", "18"),
		factory.UnitBasedJSON("data-labeling", "Data Labeling", "labels", "1000", "50"),
	}
	for _, pj := range projects {
		if err := h.createProjectFromJSON(ctx, pj); err != nil {
			return err
		}
	}

	employees := []generic.Employee{
		{ID: "emp-bo", Name: "Bo Lindqvist", Email: "bo@example.com", Role: generic.RoleWorker},
		{ID: "emp-chen", Name: "Chen Wei", Email: "chen@example.com", Role: generic.RoleWorker},
		{ID: "emp-dara", Name: "Dara Okafor", Email: "dara@example.com", Role: generic.RoleWorker},
		{ID: "emp-eli", Name: "Eli Novak", Email: "eli@example.com", Role: generic.RoleWorker},
		{ID: "mgr-fay", Name: "Fay Moreau", Email: "fay@example.com", Role: generic.RoleManager},
	}
	for _, e := range employees {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}

	logs := []generic.WorkLog{
		// Bo works two hourly projects.
		{EmployeeID: "emp-bo", ProjectID: "support-desk", Date: generic.MustParseDate("2024-03-04"), HoursWorked: generic.Dec("8")},
		{EmployeeID: "emp-bo", ProjectID: "support-desk", Date: generic.MustParseDate("2024-03-05"), HoursWorked: generic.Dec("7.5")},
		{EmployeeID: "emp-bo", ProjectID: "field-visits", Date: generic.MustParseDate("2024-03-06"), HoursWorked: generic.Dec("6")},
		// Chen labels data; the second entry on the 11th is a revision and is summed.
		{EmployeeID: "emp-chen", ProjectID: "data-labeling", Date: generic.MustParseDate("2024-03-11"), AchievedCount: generic.Dec("1500")},
		{EmployeeID: "emp-chen", ProjectID: "data-labeling", Date: generic.MustParseDate("2024-03-11"), AchievedCount: generic.Dec("1000")},
		{EmployeeID: "emp-chen", ProjectID: "support-desk", Date: generic.MustParseDate("2024-03-12"), HoursWorked: generic.Dec("4")},
		// Outside the period: ignored.
		{EmployeeID: "emp-chen", ProjectID: "support-desk", Date: generic.MustParseDate("2024-04-01"), HoursWorked: generic.Dec("8")},
		// Managers log time but are not settled.
		{EmployeeID: "mgr-fay", ProjectID: "support-desk", Date: generic.MustParseDate("2024-03-04"), HoursWorked: generic.Dec("2")},
	}
	for _, wl := range logs {
		if err := h.Store.SaveWorkLog(ctx, wl); err != nil {
			return err
		}
	}

	if err := h.addWeekdayAttendance(ctx, "emp-bo", generic.MustParseDate("2024-03-04"), 3); err != nil {
		return err
	}
	if err := h.addWeekdayAttendance(ctx, "emp-chen", generic.MustParseDate("2024-03-11"), 2); err != nil {
		return err
	}

	leave := []generic.Leave{
		// Overlapping approved requests: Mar 18-22 and Mar 20-26 are 9 distinct days.
		{EmployeeID: "emp-chen", Start: generic.MustParseDate("2024-03-18"), End: generic.MustParseDate("2024-03-22"), Status: generic.LeaveApproved},
		{EmployeeID: "emp-chen", Start: generic.MustParseDate("2024-03-20"), End: generic.MustParseDate("2024-03-26"), Status: generic.LeaveApproved},
		// Rejected leave never counts.
		{EmployeeID: "emp-bo", Start: generic.MustParseDate("2024-03-25"), End: generic.MustParseDate("2024-03-29"), Status: generic.LeaveRejected},
		// Dara is on leave all month: reviewed, never settled.
		{EmployeeID: "emp-dara", Start: generic.MustParseDate("2024-02-26"), End: generic.MustParseDate("2024-04-05"), Status: generic.LeaveApproved},
	}
	for _, l := range leave {
		if err := h.Store.SaveLeave(ctx, l); err != nil {
			return err
		}
	}

	// Eli has no activity in March and is left out of the summaries.
	return nil
}

// =============================================================================
// SCENARIO: BROKEN CONFIG
// =============================================================================

func (h *Handler) loadBrokenConfigScenario(ctx context.Context) error {
	if err := h.createProjectFromJSON(ctx,
		factory.TimeBasedJSON("support-desk", "Support Desk", "12.50")); err != nil {
		return err
	}
	// Stored directly: the factory would reject a zero divisor.
	broken := billing.UnitBased("legacy-import", "Legacy Import", "records", decimal.Zero, decimal.NewFromInt(10))
	if err := h.Store.SaveProject(ctx, broken); err != nil {
		return err
	}

	employees := []generic.Employee{
		{ID: "emp-gus", Name: "Gus Tanaka", Role: generic.RoleWorker},
		{ID: "emp-hana", Name: "Hana Said", Role: generic.RoleWorker},
	}
	for _, e := range employees {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}

	logs := []generic.WorkLog{
		{EmployeeID: "emp-gus", ProjectID: "legacy-import", Date: generic.MustParseDate("2024-04-02"), AchievedCount: generic.Dec("300")},
		{EmployeeID: "emp-hana", ProjectID: "support-desk", Date: generic.MustParseDate("2024-04-03"), HoursWorked: generic.Dec("6")},
	}
	for _, wl := range logs {
		if err := h.Store.SaveWorkLog(ctx, wl); err != nil {
			return err
		}
	}
	return h.addWeekdayAttendance(ctx, "emp-hana", generic.MustParseDate("2024-04-03"), 1)
}

// =============================================================================
// HELPERS
// =============================================================================

// createProjectFromJSON validates a project config through the factory and saves it.
func (h *Handler) createProjectFromJSON(ctx context.Context, jsonStr string) error {
	project, err := h.ProjectFactory.ParseProject(jsonStr)
	if err != nil {
		return fmt.Errorf("invalid scenario project: %w", err)
	}
	return h.Store.SaveProject(ctx, project)
}

// addWeekdayAttendance clocks the employee in on n weekdays starting at from.
func (h *Handler) addWeekdayAttendance(ctx context.Context, id generic.EmployeeID, from generic.TimePoint, n int) error {
	for day, added := from, 0; added < n; day = day.AddDays(1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		in := day.Time.Add(9 * time.Hour)
		out := day.Time.Add(17 * time.Hour)
		if err := h.Store.SaveAttendance(ctx, generic.Attendance{
			EmployeeID: id,
			Date:       day,
			ClockIn:    &in,
			ClockOut:   &out,
		}); err != nil {
			return err
		}
		added++
	}
	return nil
}
