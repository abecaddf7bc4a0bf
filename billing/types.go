// Package billing implements per-project billing configuration and the
// formula evaluator that turns raw hours or units into a monetary amount.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/generic"
)

// =============================================================================
// BILLING MODEL
// =============================================================================

// Model selects how a project bills its work.
type Model string

const (
	// ModelTimeBased bills hours x Rate.
	ModelTimeBased Model = "time_based"
	// ModelUnitBased bills (units / Divisor) x Multiplier.
	ModelUnitBased Model = "unit_based"
)

func (m Model) Valid() bool { return m == ModelTimeBased || m == ModelUnitBased }

// =============================================================================
// PROJECT
// =============================================================================

// Project is the billing configuration of one project. Exactly one model
// applies: Rate is only set for time-based projects, MetricLabel/Divisor/
// Multiplier only for unit-based ones.
type Project struct {
	ID          generic.ProjectID
	Name        string
	Model       Model
	Rate        *decimal.Decimal
	MetricLabel string
	Divisor     *decimal.Decimal
	Multiplier  *decimal.Decimal
}

// TimeBased builds a time-based project.
func TimeBased(id generic.ProjectID, name string, rate decimal.Decimal) Project {
	return Project{ID: id, Name: name, Model: ModelTimeBased, Rate: &rate}
}

// UnitBased builds a unit-based project.
func UnitBased(id generic.ProjectID, name, metric string, divisor, multiplier decimal.Decimal) Project {
	return Project{
		ID:          id,
		Name:        name,
		Model:       ModelUnitBased,
		MetricLabel: metric,
		Divisor:     &divisor,
		Multiplier:  &multiplier,
	}
}

// Validate checks the one-model invariant and that every factor is positive.
func (p Project) Validate() error {
	if p.ID == "" {
		return &FormulaError{ProjectID: p.ID, Reason: "project id is required"}
	}
	switch p.Model {
	case ModelTimeBased:
		if p.Divisor != nil || p.Multiplier != nil || p.MetricLabel != "" {
			return &FormulaError{ProjectID: p.ID, Reason: "time-based project must not set unit fields"}
		}
		if p.Rate == nil || !p.Rate.IsPositive() {
			return &FormulaError{ProjectID: p.ID, Reason: "time-based project needs a positive rate"}
		}
	case ModelUnitBased:
		if p.Rate != nil {
			return &FormulaError{ProjectID: p.ID, Reason: "unit-based project must not set a rate"}
		}
		if p.Divisor == nil || !p.Divisor.IsPositive() {
			return &FormulaError{ProjectID: p.ID, Reason: "unit-based project needs a positive divisor"}
		}
		if p.Multiplier == nil || !p.Multiplier.IsPositive() {
			return &FormulaError{ProjectID: p.ID, Reason: "unit-based project needs a positive multiplier"}
		}
	default:
		return &FormulaError{ProjectID: p.ID, Reason: fmt.Sprintf("unknown billing model %q", p.Model)}
	}
	return nil
}

// Unit is the label of the quantity the project bills on.
func (p Project) Unit() string {
	if p.Model == ModelTimeBased {
		return "hours"
	}
	if p.MetricLabel == "" {
		return "units"
	}
	return p.MetricLabel
}
