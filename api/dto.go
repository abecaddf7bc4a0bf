/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract:
  - Money is rendered as a string with exactly two decimals
  - Dates are YYYY-MM-DD strings
  - Failures carry the employee, stage and message, never a Go error value

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Settlement:
    SummaryDTO, EarningDTO, BatchDTO, SettlementDTO, FinalizeResultDTO
    PeriodRequest, FinalizeRequest, UpdateStatusRequest

  Directory:
    EmployeeDTO, NotificationDTO (projects use factory.ProjectJSON)

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/project.go: ProjectJSON type
*/
package api

import (
	"time"

	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// PeriodRequest selects an inclusive date range.
type PeriodRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// FinalizeRequest finalizes the operator-approved subset of a period's
// summaries. An empty EmployeeIDs finalizes every summary.
type FinalizeRequest struct {
	PeriodRequest
	EmployeeIDs []string `json:"employee_ids,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// SETTLEMENT RESPONSES
// =============================================================================

type EarningDTO struct {
	ProjectID    string `json:"project_id"`
	ProjectName  string `json:"project_name"`
	BillingModel string `json:"billing_model"`
	Unit         string `json:"unit"`
	Quantity     string `json:"quantity"`
	Entries      int    `json:"entries"`
	Amount       string `json:"amount"`
}

type SummaryDTO struct {
	EmployeeID   string       `json:"employee_id"`
	EmployeeName string       `json:"employee_name"`
	PeriodStart  string       `json:"period_start"`
	PeriodEnd    string       `json:"period_end"`
	Details      []EarningDTO `json:"details"`
	DaysPresent  int          `json:"days_present"`
	DaysOnLeave  int          `json:"days_on_leave"`
	GrandTotal   string       `json:"grand_total"`
}

type FailureDTO struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	Stage        string `json:"stage"`
	Error        string `json:"error"`
}

// BatchDTO is the preview response.
type BatchDTO struct {
	PeriodStart string       `json:"period_start"`
	PeriodEnd   string       `json:"period_end"`
	Summaries   []SummaryDTO `json:"summaries"`
	Failures    []FailureDTO `json:"failures"`
	Complete    bool         `json:"complete"`
}

type SettlementDTO struct {
	ID             string       `json:"id"`
	IdempotencyKey string       `json:"idempotency_key"`
	EmployeeID     string       `json:"employee_id"`
	EmployeeName   string       `json:"employee_name"`
	PeriodStart    string       `json:"period_start"`
	PeriodEnd      string       `json:"period_end"`
	Status         string       `json:"status"`
	Notification   string       `json:"notification"`
	PrimaryProject string       `json:"primary_project,omitempty"`
	Breakdown      []EarningDTO `json:"breakdown"`
	DaysPresent    int          `json:"days_present"`
	DaysOnLeave    int          `json:"days_on_leave"`
	Total          string       `json:"total"`
	CreatedAt      string       `json:"created_at"`
	UpdatedAt      string       `json:"updated_at"`
}

type FinalizedDTO struct {
	EmployeeID   string `json:"employee_id"`
	SettlementID string `json:"settlement_id"`
	Renotified   bool   `json:"renotified,omitempty"`
}

type SkippedDTO struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

type FinalizeResultDTO struct {
	SucceededCount     int            `json:"succeeded_count"`
	FailedAtEmployeeID string         `json:"failed_at_employee_id,omitempty"`
	Succeeded          []FinalizedDTO `json:"succeeded"`
	Failed             []FailureDTO   `json:"failed"`
	Skipped            []SkippedDTO   `json:"skipped"`
	NotAttempted       []string       `json:"not_attempted"`
	ComputeFailures    []FailureDTO   `json:"compute_failures,omitempty"`
}

// =============================================================================
// DIRECTORY RESPONSES
// =============================================================================

type EmployeeDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type NotificationDTO struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEarningDTOs(details []settlement.ProjectEarning) []EarningDTO {
	out := make([]EarningDTO, len(details))
	for i, d := range details {
		out[i] = EarningDTO{
			ProjectID:    string(d.ProjectID),
			ProjectName:  d.ProjectName,
			BillingModel: string(d.Model),
			Unit:         d.Unit,
			Quantity:     d.Quantity.String(),
			Entries:      d.Entries,
			Amount:       generic.FormatMoney(d.Amount),
		}
	}
	return out
}

func toSummaryDTO(s settlement.Summary) SummaryDTO {
	return SummaryDTO{
		EmployeeID:   string(s.Employee.ID),
		EmployeeName: s.Employee.Name,
		PeriodStart:  s.Period.Start.String(),
		PeriodEnd:    s.Period.End.String(),
		Details:      toEarningDTOs(s.Details),
		DaysPresent:  s.Attendance.DaysPresent,
		DaysOnLeave:  s.Attendance.DaysOnLeave,
		GrandTotal:   generic.FormatMoney(s.GrandTotal),
	}
}

func toFailureDTOs(failures []*settlement.EmployeeFailure) []FailureDTO {
	out := make([]FailureDTO, len(failures))
	for i, f := range failures {
		out[i] = FailureDTO{
			EmployeeID:   string(f.EmployeeID),
			EmployeeName: f.EmployeeName,
			Stage:        string(f.Stage),
			Error:        f.Err.Error(),
		}
	}
	return out
}

func toBatchDTO(b *settlement.Batch) BatchDTO {
	summaries := make([]SummaryDTO, len(b.Summaries))
	for i, s := range b.Summaries {
		summaries[i] = toSummaryDTO(s)
	}
	return BatchDTO{
		PeriodStart: b.Period.Start.String(),
		PeriodEnd:   b.Period.End.String(),
		Summaries:   summaries,
		Failures:    toFailureDTOs(b.Failures),
		Complete:    b.Complete(),
	}
}

func toSettlementDTO(r settlement.Record) SettlementDTO {
	dto := SettlementDTO{
		ID:             string(r.ID),
		IdempotencyKey: r.IdempotencyKey,
		EmployeeID:     string(r.EmployeeID),
		EmployeeName:   r.EmployeeName,
		PeriodStart:    r.Period.Start.String(),
		PeriodEnd:      r.Period.End.String(),
		Status:         string(r.Status),
		Notification:   string(r.Notification),
		Breakdown:      toEarningDTOs(r.Breakdown),
		DaysPresent:    r.Attendance.DaysPresent,
		DaysOnLeave:    r.Attendance.DaysOnLeave,
		Total:          generic.FormatMoney(r.Total),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
	if p, ok := r.PrimaryProject(); ok {
		dto.PrimaryProject = p.ProjectName
	}
	return dto
}

func toFinalizeResultDTO(r *settlement.FinalizeResult) FinalizeResultDTO {
	dto := FinalizeResultDTO{
		SucceededCount:     r.SucceededCount,
		FailedAtEmployeeID: string(r.FailedAtEmployeeID),
		Succeeded:          make([]FinalizedDTO, len(r.Succeeded)),
		Failed:             toFailureDTOs(r.Failed),
		Skipped:            make([]SkippedDTO, len(r.Skipped)),
		NotAttempted:       make([]string, len(r.NotAttempted)),
	}
	for i, s := range r.Succeeded {
		dto.Succeeded[i] = FinalizedDTO{EmployeeID: string(s.EmployeeID), SettlementID: string(s.SettlementID), Renotified: s.Renotified}
	}
	for i, s := range r.Skipped {
		dto.Skipped[i] = SkippedDTO{EmployeeID: string(s.EmployeeID), Reason: string(s.Reason)}
	}
	for i, id := range r.NotAttempted {
		dto.NotAttempted[i] = string(id)
	}
	return dto
}
