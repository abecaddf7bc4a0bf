/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and the store.

ENDPOINTS:
  Settlements:
    POST   /api/settlements/preview        Compute summaries for a period
    POST   /api/settlements/finalize       Recompute, then finalize approved employees
    GET    /api/settlements                List finalized settlements
    GET    /api/settlements/{id}           Get one settlement
    PATCH  /api/settlements/{id}/status    PENDING -> PAID | OVERDUE
    GET    /api/settlements/export         XLSX workbook (preview or finalized)

  Directory:
    GET    /api/employees                  List eligible employees
    POST   /api/employees                  Create employee
    GET    /api/employees/{id}/notifications Notification inbox
    GET    /api/projects                   List project billing configs
    POST   /api/projects                   Create project from JSON

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (also the engine's collaborators)
  - Engine: Compute and finalize
  - ProjectFactory: JSON to billing.Project conversion

FINALIZE FLOW:
  The client sends the period and the employee IDs the operator approved.
  Summaries are recomputed server-side, so a client can't submit amounts;
  only the approved subset is finalized. Re-sending the same request is
  safe: already-finalized employees come back as skipped.

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the error:
  - 400: Validation errors, invalid input, invalid status transition
  - 404: Settlement or employee not found
  - 409: Conflict (duplicate settlement)
  - 422: Broken billing configuration (strict mode)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/settlement-engine/export"
	"github.com/warp/settlement-engine/factory"
	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          *sqlite.Store
	Engine         *settlement.Engine
	ProjectFactory *factory.ProjectFactory
	Logger         *slog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. The engine should be built on the same
// store, see NewEngine in cmd/server.
func NewHandler(store *sqlite.Store, engine *settlement.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:          store,
		Engine:         engine,
		ProjectFactory: factory.NewProjectFactory(),
		Logger:         logger,
	}
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// PreviewSettlements computes the review list without persisting anything.
// POST /api/settlements/preview
func (h *Handler) PreviewSettlements(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM-DD)", err)
		return
	}

	batch, err := h.Engine.ComputeSummaries(r.Context(), start, end)
	if err != nil {
		writeErrorFrom(w, "Failed to compute settlements", err)
		return
	}

	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// FinalizeSettlements recomputes the period and finalizes the approved subset.
// POST /api/settlements/finalize
func (h *Handler) FinalizeSettlements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM-DD)", err)
		return
	}

	batch, err := h.Engine.ComputeSummaries(ctx, start, end)
	if err != nil {
		writeErrorFrom(w, "Failed to compute settlements", err)
		return
	}

	summaries := approved(batch.Summaries, req.EmployeeIDs)
	result, err := h.Engine.Finalize(ctx, summaries)
	if err != nil && ctx.Err() != nil {
		writeError(w, http.StatusServiceUnavailable, "Finalize interrupted", err)
		return
	}

	dto := toFinalizeResultDTO(result)
	dto.ComputeFailures = toFailureDTOs(batch.Failures)
	writeJSON(w, http.StatusOK, dto)
}

// approved keeps the summaries whose employee is listed. An empty list
// approves everything. Order is preserved.
func approved(summaries []settlement.Summary, ids []string) []settlement.Summary {
	if len(ids) == 0 {
		return summaries
	}
	keep := make(map[generic.EmployeeID]bool, len(ids))
	for _, id := range ids {
		keep[generic.EmployeeID(id)] = true
	}
	var out []settlement.Summary
	for _, s := range summaries {
		if keep[s.Employee.ID] {
			out = append(out, s)
		}
	}
	return out
}

// ListSettlements returns finalized settlements matching the query.
// GET /api/settlements?employee_id=&period_start=&period_end=&status=
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	records, err := h.Store.ListSettlements(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
		return
	}

	dtos := make([]SettlementDTO, len(records))
	for i, rec := range records {
		dtos[i] = toSettlementDTO(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": dtos})
}

// GetSettlement returns one settlement.
// GET /api/settlements/{id}
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	id := generic.SettlementID(chi.URLParam(r, "id"))

	rec, err := h.Store.GetSettlement(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, "Failed to get settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*rec))
}

// UpdateSettlementStatus marks a pending settlement as paid or overdue.
// PATCH /api/settlements/{id}/status
func (h *Handler) UpdateSettlementStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.SettlementID(chi.URLParam(r, "id"))

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status := settlement.Status(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", req.Status), nil)
		return
	}

	if err := h.Store.UpdateSettlementStatus(ctx, id, status); err != nil {
		writeErrorFrom(w, "Failed to update settlement status", err)
		return
	}

	rec, err := h.Store.GetSettlement(ctx, id)
	if err != nil {
		writeErrorFrom(w, "Failed to get settlement", err)
		return
	}
	h.Logger.Info("settlement status updated", "settlement_id", id, "status", status)
	writeJSON(w, http.StatusOK, toSettlementDTO(*rec))
}

// ExportSettlements streams an XLSX workbook. source=finalized exports the
// stored records of the period; the default exports a fresh preview.
// GET /api/settlements/export?period_start=&period_end=&source=
func (h *Handler) ExportSettlements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	start, end, err := parsePeriod(q.Get("period_start"), q.Get("period_end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM-DD)", err)
		return
	}
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		writeErrorFrom(w, "Invalid period", err)
		return
	}

	filename := fmt.Sprintf("settlements_%s_%s.xlsx", period.Start, period.End)
	var render func(w http.ResponseWriter) error

	switch q.Get("source") {
	case "", "preview":
		batch, err := h.Engine.ComputeSummaries(ctx, start, end)
		if err != nil {
			writeErrorFrom(w, "Failed to compute settlements", err)
			return
		}
		filename = "preview_" + filename
		render = func(w http.ResponseWriter) error { return export.WriteSummaries(w, batch) }
	case "finalized":
		records, err := h.Store.ListSettlements(ctx, settlement.Filter{Period: &period})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
			return
		}
		render = func(w http.ResponseWriter) error { return export.WriteSettlements(w, records) }
	default:
		writeError(w, http.StatusBadRequest, "source must be preview or finalized", nil)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := render(w); err != nil {
		h.Logger.Error("failed to write export", "error", err)
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns employees eligible for settlement.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEligible(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{ID: string(e.ID), Name: e.Name, Email: e.Email, Role: string(e.Role)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee adds an employee. Role defaults to worker.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	role := generic.Role(req.Role)
	switch role {
	case "":
		role = generic.RoleWorker
	case generic.RoleWorker, generic.RoleManager, generic.RoleAdmin:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown role %q", req.Role), nil)
		return
	}

	emp := generic.Employee{ID: generic.EmployeeID(req.ID), Name: req.Name, Email: req.Email, Role: role}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}

	req.Role = string(role)
	writeJSON(w, http.StatusCreated, req)
}

// GetNotifications returns an employee's inbox, newest first.
// GET /api/employees/{id}/notifications?limit=
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.EmployeeID(chi.URLParam(r, "id"))

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		writeErrorFrom(w, "Failed to get employee", err)
		return
	}

	notes, err := h.Store.ListNotifications(ctx, id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(notes))
	for i, n := range notes {
		dtos[i] = NotificationDTO{ID: n.ID, Message: n.Message, CreatedAt: n.CreatedAt.Format(time.RFC3339)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": dtos})
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns every project's billing configuration.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}

	dtos := make([]factory.ProjectJSON, len(projects))
	for i, p := range projects {
		dtos[i] = h.ProjectFactory.ToJSON(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProject validates a billing configuration and stores it.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req factory.ProjectJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	project, err := h.ProjectFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project configuration", err)
		return
	}

	if err := h.Store.SaveProject(r.Context(), project); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create project", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.ProjectFactory.ToJSON(project))
}

// =============================================================================
// HELPERS
// =============================================================================

func parsePeriod(startStr, endStr string) (generic.TimePoint, generic.TimePoint, error) {
	if startStr == "" || endStr == "" {
		return generic.TimePoint{}, generic.TimePoint{}, fmt.Errorf("%w: period_start and period_end are required", generic.ErrInvalidPeriod)
	}
	start, err := generic.ParseDate(startStr)
	if err != nil {
		return generic.TimePoint{}, generic.TimePoint{}, err
	}
	end, err := generic.ParseDate(endStr)
	if err != nil {
		return generic.TimePoint{}, generic.TimePoint{}, err
	}
	return start, end, nil
}

func parseFilter(r *http.Request) (settlement.Filter, error) {
	q := r.URL.Query()
	f := settlement.Filter{EmployeeID: generic.EmployeeID(q.Get("employee_id"))}

	if q.Get("period_start") != "" || q.Get("period_end") != "" {
		start, end, err := parsePeriod(q.Get("period_start"), q.Get("period_end"))
		if err != nil {
			return f, err
		}
		period, err := generic.NewPeriod(start, end)
		if err != nil {
			return f, err
		}
		f.Period = &period
	}

	if s := q.Get("status"); s != "" {
		f.Status = settlement.Status(s)
		if !f.Status.Valid() {
			return f, fmt.Errorf("unknown status %q", s)
		}
	}
	return f, nil
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case generic.IsDataIntegrity(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeErrorFrom(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}
