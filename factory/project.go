/*
Package factory provides JSON to Go project billing conversion.

PURPOSE:
  Converts JSON project billing definitions into billing.Project values.
  The project directory stores configurations as JSON; the factory is the
  one place that decodes and validates them.

JSON SCHEMA:
  Time-based:
  {
    "id": "support-desk",
    "name": "Support Desk",
    "billing_model": "time_based",
    "rate": "12.50"
  }

  Unit-based:
  {
    "id": "survey-entry",
    "name": "Survey Entry",
    "billing_model": "unit_based",
    "metric_label": "forms",
    "divisor": "1000",
    "multiplier": "50"
  }

KEY FEATURES:
  - Decimal fields accept JSON strings or numbers
  - Rejects configs that set fields of both models
  - Rejects zero or missing divisors instead of treating them as 0

USAGE:
  f := factory.NewProjectFactory()
  project, err := f.ParseProject(jsonString)

SEE ALSO:
  - billing/types.go: Project type and Validate
  - store/sqlite/sqlite.go: Stores config_json per project
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProjectJSON is the JSON representation of a project's billing config.
type ProjectJSON struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	BillingModel string           `json:"billing_model"`
	Rate         *decimal.Decimal `json:"rate,omitempty"`
	MetricLabel  string           `json:"metric_label,omitempty"`
	Divisor      *decimal.Decimal `json:"divisor,omitempty"`
	Multiplier   *decimal.Decimal `json:"multiplier,omitempty"`
}

// =============================================================================
// PROJECT FACTORY
// =============================================================================

// ProjectFactory converts JSON project configs to billing.Project.
type ProjectFactory struct{}

// NewProjectFactory creates a new project factory.
func NewProjectFactory() *ProjectFactory {
	return &ProjectFactory{}
}

// ParseProject parses a JSON string into a validated Project.
func (f *ProjectFactory) ParseProject(jsonStr string) (billing.Project, error) {
	p, err := f.Decode(jsonStr)
	if err != nil {
		return billing.Project{}, err
	}
	if err := p.Validate(); err != nil {
		return billing.Project{}, err
	}
	return p, nil
}

// Decode parses a JSON string without validating the formula. Directories
// use it on read so that one broken configuration surfaces as a formula
// error for the employees who logged work on it, not for everyone.
func (f *ProjectFactory) Decode(jsonStr string) (billing.Project, error) {
	var pj ProjectJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return billing.Project{}, fmt.Errorf("failed to parse project JSON: %w", err)
	}
	return f.convert(pj), nil
}

// FromJSON converts ProjectJSON to a validated billing.Project.
func (f *ProjectFactory) FromJSON(pj ProjectJSON) (billing.Project, error) {
	p := f.convert(pj)
	if err := p.Validate(); err != nil {
		return billing.Project{}, err
	}
	return p, nil
}

func (f *ProjectFactory) convert(pj ProjectJSON) billing.Project {
	p := billing.Project{
		ID:          generic.ProjectID(pj.ID),
		Name:        pj.Name,
		Model:       billing.Model(pj.BillingModel),
		Rate:        pj.Rate,
		MetricLabel: pj.MetricLabel,
		Divisor:     pj.Divisor,
		Multiplier:  pj.Multiplier,
	}
	if p.Name == "" {
		p.Name = pj.ID
	}
	return p
}

// ToJSON converts a Project back to its JSON representation.
func (f *ProjectFactory) ToJSON(p billing.Project) ProjectJSON {
	return ProjectJSON{
		ID:           string(p.ID),
		Name:         p.Name,
		BillingModel: string(p.Model),
		Rate:         p.Rate,
		MetricLabel:  p.MetricLabel,
		Divisor:      p.Divisor,
		Multiplier:   p.Multiplier,
	}
}

// Marshal renders a Project as the JSON string stored by the directory.
func (f *ProjectFactory) Marshal(p billing.Project) (string, error) {
	data, err := json.Marshal(f.ToJSON(p))
	if err != nil {
		return "", fmt.Errorf("failed to marshal project %s: %w", p.ID, err)
	}
	return string(data), nil
}

// =============================================================================
// PRESETS
// =============================================================================

// TimeBasedJSON returns the JSON config of an hourly project.
func TimeBasedJSON(id, name, rate string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"billing_model": "time_based",
		"rate": %q
	}`, id, name, rate)
}

// UnitBasedJSON returns the JSON config of a per-unit project.
func UnitBasedJSON(id, name, metric, divisor, multiplier string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"billing_model": "unit_based",
		"metric_label": %q,
		"divisor": %q,
		"multiplier": %q
	}`, id, name, metric, divisor, multiplier)
}
