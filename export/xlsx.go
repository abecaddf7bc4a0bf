// Package export renders settlement data as XLSX workbooks for operator
// review. Every workbook has two sheets: "Summary" with one row per
// employee and "Breakdown" with one row per project line.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/settlement"
)

const (
	SummarySheet   = "Summary"
	BreakdownSheet = "Breakdown"
)

var (
	summaryHeader = []any{
		"Employee ID", "Employee", "Period Start", "Period End",
		"Days Present", "Days On Leave", "Projects", "Total",
	}
	settlementHeader = []any{
		"Settlement ID", "Employee ID", "Employee", "Period Start", "Period End",
		"Days Present", "Days On Leave", "Projects", "Total", "Status",
	}
	breakdownHeader = []any{
		"Employee ID", "Project ID", "Project", "Billing Model",
		"Unit", "Quantity", "Entries", "Amount",
	}
)

// WriteSummaries writes computed (not yet finalized) summaries, in the
// order they appear in the batch.
func WriteSummaries(w io.Writer, batch *settlement.Batch) error {
	wb, err := newWorkbook(summaryHeader)
	if err != nil {
		return err
	}
	defer wb.f.Close()

	for _, s := range batch.Summaries {
		if err := wb.summaryRow(8,
			string(s.Employee.ID), s.Employee.Name, s.Period.Start.String(), s.Period.End.String(),
			s.Attendance.DaysPresent, s.Attendance.DaysOnLeave, len(s.Details), money(s.GrandTotal),
		); err != nil {
			return err
		}
		for _, d := range s.Details {
			if err := wb.breakdownRow(s.Employee.ID, d); err != nil {
				return err
			}
		}
	}
	return wb.write(w)
}

// WriteSettlements writes finalized records with their status.
func WriteSettlements(w io.Writer, records []settlement.Record) error {
	wb, err := newWorkbook(settlementHeader)
	if err != nil {
		return err
	}
	defer wb.f.Close()

	for _, r := range records {
		if err := wb.summaryRow(9,
			string(r.ID), string(r.EmployeeID), r.EmployeeName, r.Period.Start.String(), r.Period.End.String(),
			r.Attendance.DaysPresent, r.Attendance.DaysOnLeave, len(r.Breakdown), money(r.Total), string(r.Status),
		); err != nil {
			return err
		}
		for _, d := range r.Breakdown {
			if err := wb.breakdownRow(r.EmployeeID, d); err != nil {
				return err
			}
		}
	}
	return wb.write(w)
}

// =============================================================================
// WORKBOOK
// =============================================================================

type workbook struct {
	f             *excelize.File
	moneyStyle    int
	summaryRows   int
	breakdownRows int
}

func newWorkbook(header []any) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(BreakdownSheet); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	// "0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		f.Close()
		return nil, err
	}

	wb := &workbook{f: f, moneyStyle: moneyStyle, summaryRows: 1, breakdownRows: 1}
	for _, sheet := range []struct {
		name   string
		header []any
	}{{SummarySheet, header}, {BreakdownSheet, breakdownHeader}} {
		if err := f.SetSheetRow(sheet.name, "A1", &sheet.header); err != nil {
			f.Close()
			return nil, err
		}
		last, _ := excelize.CoordinatesToCellName(len(sheet.header), 1)
		if err := f.SetCellStyle(sheet.name, "A1", last, bold); err != nil {
			f.Close()
			return nil, err
		}
		lastCol, _ := excelize.ColumnNumberToName(len(sheet.header))
		if err := f.SetColWidth(sheet.name, "A", lastCol, 16); err != nil {
			f.Close()
			return nil, err
		}
	}
	return wb, nil
}

// summaryRow appends a row; totalCol is the 1-based money column.
func (wb *workbook) summaryRow(totalCol int, values ...any) error {
	wb.summaryRows++
	if err := wb.setRow(SummarySheet, wb.summaryRows, values); err != nil {
		return err
	}
	return wb.styleMoney(SummarySheet, totalCol, wb.summaryRows)
}

func (wb *workbook) breakdownRow(employeeID generic.EmployeeID, d settlement.ProjectEarning) error {
	wb.breakdownRows++
	values := []any{
		string(employeeID), string(d.ProjectID), d.ProjectName, string(d.Model),
		d.Unit, d.Quantity.InexactFloat64(), d.Entries, money(d.Amount),
	}
	if err := wb.setRow(BreakdownSheet, wb.breakdownRows, values); err != nil {
		return err
	}
	return wb.styleMoney(BreakdownSheet, len(values), wb.breakdownRows)
}

func (wb *workbook) setRow(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := wb.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func (wb *workbook) styleMoney(sheet string, col, row int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return wb.f.SetCellStyle(sheet, cell, cell, wb.moneyStyle)
}

func (wb *workbook) write(w io.Writer) error {
	if _, err := wb.f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// money converts a rounded amount for the cell value; the stored amount
// keeps its exact decimal form.
func money(d decimal.Decimal) float64 {
	return generic.RoundMoney(d).InexactFloat64()
}
