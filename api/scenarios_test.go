package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	_, router := setupScenario(t, "")

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			current := decode[ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", nil))
			assert.Equal(t, s.ID, current.ID)

			// Every scenario previews its own period successfully
			rec = do(t, router, http.MethodPost, "/api/settlements/preview",
				PeriodRequest{PeriodStart: s.PeriodStart, PeriodEnd: s.PeriodEnd})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[BatchDTO](t, rec).Summaries)
		})
	}
}

func TestScenario_LoadReplacesData(t *testing.T) {
	// GIVEN: The mixed team, then February loaded over it
	_, router := setupScenario(t, "mixed-team")
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "february-2024"})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Only February's worker remains
	employees := decode[[]EmployeeDTO](t, do(t, router, http.MethodGet, "/api/employees", nil))
	require.Len(t, employees, 1)
	assert.Equal(t, "emp-ana", employees[0].ID)
}

func TestScenario_Unknown(t *testing.T) {
	_, router := setupScenario(t, "")

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "year-end"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_Reset(t *testing.T) {
	_, router := setupScenario(t, "february-2024")

	rec := do(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	employees := decode[[]EmployeeDTO](t, do(t, router, http.MethodGet, "/api/employees", nil))
	assert.Empty(t, employees)
	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
}
