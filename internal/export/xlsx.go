// Package export renders the ledger as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/core"
)

const (
	TransactionsSheet = "Transactions"
	SummarySheet      = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FileName is the download name for a workbook produced at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("budgetbuddy_%s.xlsx", t.Format("20060102"))
}

// WriteWorkbook writes records in the given order plus a summary sheet with
// totals formatted in currency.
func WriteWorkbook(w io.Writer, records []core.Record, currency core.Currency, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TransactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeTransactions(f, records, loc); err != nil {
		return err
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, records, currency); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeTransactions(f *excelize.File, records []core.Record, loc *time.Location) error {
	if err := setRow(f, TransactionsSheet, 1, "Date", "Type", "Category", "Amount"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		date := r.Date
		if t, err := r.Time(loc); err == nil {
			date = t.In(loc).Format(core.DayLayout)
		}
		if err := setRow(f, TransactionsSheet, i+2, date, string(r.Type), r.Nature, r.Amount.InexactFloat64()); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(TransactionsSheet, 1, 1, style)
	}
	_ = f.SetColWidth(TransactionsSheet, "A", "A", 12)
	_ = f.SetColWidth(TransactionsSheet, "B", "B", 12)
	_ = f.SetColWidth(TransactionsSheet, "C", "C", 20)
	_ = f.SetColWidth(TransactionsSheet, "D", "D", 14)
	return nil
}

func writeSummary(f *excelize.File, records []core.Record, currency core.Currency) error {
	totals := aggregate.TotalsByType(records)
	rows := [][]any{
		{"Metric", "Value"},
		{"Total Income", core.FormatAmount(totals.Income, currency)},
		{"Total Expense", core.FormatAmount(totals.Expense, currency)},
		{"Total Borrowing", core.FormatAmount(totals.Borrowing, currency)},
		{"Balance", core.FormatAmount(aggregate.Balance(totals), currency)},
		{"Transactions", len(records)},
	}
	for i, r := range rows {
		if err := setRow(f, SummarySheet, i+1, r...); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 18)
	_ = f.SetColWidth(SummarySheet, "B", "B", 18)
	return nil
}
