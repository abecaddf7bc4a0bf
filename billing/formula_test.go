package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/generic"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEvaluate_UnitBased(t *testing.T) {
	tests := []struct {
		name                       string
		divisor, multiplier, units string
		want                       string
	}{
		{"per thousand", "1000", "50", "2500", "125.00"},
		{"per unit", "1", "0.5", "200", "100.00"},
		{"repeating quotient rounds once", "3", "1", "10", "3.33"},
		{"half cent rounds up", "1000", "1", "5", "0.01"},
		{"zero units", "1000", "50", "0", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := UnitBased("p", "P", "forms", d(tt.divisor), d(tt.multiplier))

			amount, err := Evaluate(p, d(tt.units))

			require.NoError(t, err)
			assert.Equal(t, tt.want, amount.StringFixed(2))
		})
	}
}

func TestEvaluate_TimeBased(t *testing.T) {
	p := TimeBased("support", "Support", d("12.50"))

	amount, err := Evaluate(p, d("15.5"))

	require.NoError(t, err)
	assert.Equal(t, "193.75", amount.StringFixed(2))
}

func TestEvaluate_InvalidConfigurations(t *testing.T) {
	rate := d("10")
	tests := []struct {
		name    string
		project Project
	}{
		{"zero divisor", UnitBased("p", "P", "forms", decimal.Zero, d("50"))},
		{"negative multiplier", UnitBased("p", "P", "forms", d("1000"), d("-1"))},
		{"missing divisor", Project{ID: "p", Model: ModelUnitBased, Multiplier: &rate}},
		{"missing rate", Project{ID: "p", Model: ModelTimeBased}},
		{"both models", Project{ID: "p", Model: ModelTimeBased, Rate: &rate, Divisor: &rate}},
		{"unit-based with rate", Project{ID: "p", Model: ModelUnitBased, Rate: &rate, Divisor: &rate, Multiplier: &rate}},
		{"unknown model", Project{ID: "p", Model: "fixed_fee"}},
		{"missing id", TimeBased("", "P", rate)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.project, d("100"))

			require.Error(t, err)
			assert.ErrorIs(t, err, generic.ErrInvalidFormula)
			var fe *FormulaError
			assert.True(t, errors.As(err, &fe))
			assert.True(t, generic.IsDataIntegrity(err))
		})
	}
}

func TestEvaluate_NegativeQuantity(t *testing.T) {
	_, err := Evaluate(TimeBased("p", "P", d("10")), d("-1"))
	assert.ErrorIs(t, err, generic.ErrInvalidFormula)
}

func TestProject_Unit(t *testing.T) {
	assert.Equal(t, "hours", TimeBased("p", "P", d("1")).Unit())
	assert.Equal(t, "forms", UnitBased("p", "P", "forms", d("1"), d("1")).Unit())
	assert.Equal(t, "units", UnitBased("p", "P", "", d("1"), d("1")).Unit())
}
