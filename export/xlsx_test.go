package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/settlement"
)

func bo() settlement.Summary {
	return settlement.Summary{
		Employee: generic.Employee{ID: "emp-bo", Name: "Bo"},
		Period:   generic.Period{Start: generic.MustParseDate("2024-03-01"), End: generic.MustParseDate("2024-03-31")},
		Details: []settlement.ProjectEarning{
			{ProjectID: "support", ProjectName: "Support Desk", Model: billing.ModelTimeBased, Unit: "hours", Quantity: decimal.RequireFromString("15.5"), Entries: 2, Amount: decimal.RequireFromString("193.75")},
			{ProjectID: "field", ProjectName: "Field Visits", Model: billing.ModelTimeBased, Unit: "hours", Quantity: decimal.RequireFromString("6"), Entries: 1, Amount: decimal.RequireFromString("108.00")},
		},
		Attendance: settlement.AttendanceSummary{DaysPresent: 3},
		GrandTotal: decimal.RequireFromString("301.75"),
	}
}

func open(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteSummaries(t *testing.T) {
	// GIVEN: A batch with one employee over two projects
	batch := &settlement.Batch{Summaries: []settlement.Summary{bo()}}

	// WHEN: Exporting
	var buf bytes.Buffer
	require.NoError(t, WriteSummaries(&buf, batch))

	// THEN: One summary row and two breakdown rows
	f := open(t, &buf)
	assert.Equal(t, []string{SummarySheet, BreakdownSheet}, f.GetSheetList())

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Total", rows[0][7])
	assert.Equal(t, []string{"emp-bo", "Bo", "2024-03-01", "2024-03-31", "3", "0", "2"}, rows[1][:7])
	assert.Equal(t, "301.75", rows[1][7])

	breakdown, err := f.GetRows(BreakdownSheet)
	require.NoError(t, err)
	require.Len(t, breakdown, 3)
	assert.Equal(t, "support", breakdown[1][1])
	assert.Equal(t, "time_based", breakdown[1][3])
	assert.Equal(t, "193.75", breakdown[1][7])
}

func TestWriteSettlements(t *testing.T) {
	r := settlement.NewRecord("stl-1", bo(), time.Now())

	var buf bytes.Buffer
	require.NoError(t, WriteSettlements(&buf, []settlement.Record{r}))

	rows, err := open(t, &buf).GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Status", rows[0][9])
	assert.Equal(t, "stl-1", rows[1][0])
	assert.Equal(t, "301.75", rows[1][8])
	assert.Equal(t, "PENDING", rows[1][9])
}

func TestWriteSummaries_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaries(&buf, &settlement.Batch{}))

	rows, err := open(t, &buf).GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
