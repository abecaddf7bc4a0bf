package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/generic"
)

// divisionPlaces is the precision kept on the unit-based quotient before
// the final rounding.
const divisionPlaces = 16

// FormulaError reports a project whose billing configuration can't be
// evaluated. It unwraps to generic.ErrInvalidFormula.
type FormulaError struct {
	ProjectID generic.ProjectID
	Reason    string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("invalid billing formula for project %s: %s", e.ProjectID, e.Reason)
}

func (e *FormulaError) Unwrap() error { return generic.ErrInvalidFormula }

// Evaluate applies the project's billing model to the aggregated quantity
// for one period: hours for time-based projects, achieved units for
// unit-based ones. The result is rounded to cents once, here, so callers
// must pass the already-summed quantity rather than evaluating per entry.
func Evaluate(p Project, quantity decimal.Decimal) (decimal.Decimal, error) {
	if err := p.Validate(); err != nil {
		return decimal.Zero, err
	}
	if quantity.IsNegative() {
		return decimal.Zero, &FormulaError{ProjectID: p.ID, Reason: "quantity must not be negative"}
	}

	var amount decimal.Decimal
	switch p.Model {
	case ModelTimeBased:
		amount = quantity.Mul(*p.Rate)
	case ModelUnitBased:
		// (units / divisor) x multiplier; multiplying first leaves a single
		// inexact step.
		amount = quantity.Mul(*p.Multiplier).DivRound(*p.Divisor, divisionPlaces)
	}
	return generic.RoundMoney(amount), nil
}
