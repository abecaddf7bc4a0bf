package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/generic"
)

func TestParseProject_Presets(t *testing.T) {
	f := NewProjectFactory()

	hourly, err := f.ParseProject(TimeBasedJSON("support-desk", "Support Desk", "12.50"))
	require.NoError(t, err)
	assert.Equal(t, billing.ModelTimeBased, hourly.Model)
	assert.Equal(t, "12.5", hourly.Rate.String())
	assert.Nil(t, hourly.Divisor)

	unit, err := f.ParseProject(UnitBasedJSON("survey", "Survey", "forms", "1000", "50"))
	require.NoError(t, err)
	assert.Equal(t, billing.ModelUnitBased, unit.Model)
	assert.Equal(t, "forms", unit.Unit())
	assert.Equal(t, "1000", unit.Divisor.String())
	assert.Equal(t, "50", unit.Multiplier.String())
}

func TestParseProject_NumbersAndDefaultName(t *testing.T) {
	// GIVEN: Decimal fields as JSON numbers and no name
	p, err := NewProjectFactory().ParseProject(`{
		"id": "labeling",
		"billing_model": "unit_based",
		"divisor": 1000,
		"multiplier": 0.5
	}`)

	// THEN: Numbers are accepted and the name falls back to the ID
	require.NoError(t, err)
	assert.Equal(t, "labeling", p.Name)
	assert.Equal(t, "0.5", p.Multiplier.String())
}

func TestParseProject_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"zero divisor", UnitBasedJSON("p", "P", "forms", "0", "50")},
		{"missing multiplier", `{"id":"p","billing_model":"unit_based","divisor":"10"}`},
		{"both models", `{"id":"p","billing_model":"time_based","rate":"10","divisor":"10"}`},
		{"unknown model", `{"id":"p","billing_model":"retainer"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProjectFactory().ParseProject(tt.json)
			assert.ErrorIs(t, err, generic.ErrInvalidFormula)
		})
	}

	_, err := NewProjectFactory().ParseProject(`{not json`)
	assert.Error(t, err)
}

func TestDecode_KeepsInvalidFormula(t *testing.T) {
	// GIVEN: A stored config with a zero divisor
	p, err := NewProjectFactory().Decode(UnitBasedJSON("legacy", "Legacy", "rows", "0", "10"))

	// THEN: Decoding succeeds; validation reports the problem
	require.NoError(t, err)
	assert.ErrorIs(t, p.Validate(), generic.ErrInvalidFormula)
}

func TestMarshal_RoundTrip(t *testing.T) {
	f := NewProjectFactory()
	original, err := f.ParseProject(UnitBasedJSON("survey", "Survey", "forms", "1000", "50"))
	require.NoError(t, err)

	data, err := f.Marshal(original)
	require.NoError(t, err)
	parsed, err := f.ParseProject(data)
	require.NoError(t, err)

	assert.Equal(t, original.ID, parsed.ID)
	assert.True(t, original.Divisor.Equal(*parsed.Divisor))
	assert.True(t, original.Multiplier.Equal(*parsed.Multiplier))
	assert.Equal(t, original.MetricLabel, parsed.MetricLabel)
}
