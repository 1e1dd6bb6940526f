// Package reports renders a group's ledger summary for a date range as a
// spreadsheet or CSV download.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/xuri/excelize/v2"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const dateLayout = "2006-01-02"

// Data is everything a report shows.
type Data struct {
	Group        models.Group
	Range        models.DateRange
	Stats        models.GroupStats
	Transactions []models.Transaction
}

type Renderer interface {
	Render(ctx context.Context, d Data) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the renderer for format, or common.ErrorValidation.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case FormatXLSX:
		return XLSX{}, nil
	case FormatCSV:
		return CSV{}, nil
	default:
		return nil, common.NewError(common.ErrorValidation, fmt.Sprintf("unsupported report format %q", format))
	}
}

var transactionHeader = []string{"Date", "Type", "Category", "Description", "Amount", "Receipt", "Created by"}

func transactionRow(t models.Transaction) []string {
	category, receipt := "", ""
	if t.Category != nil {
		category = *t.Category
	}
	if t.ReceiptURL != nil {
		receipt = *t.ReceiptURL
	}
	return []string{
		t.Date.Format(dateLayout),
		string(t.Type),
		category,
		t.Description,
		t.Amount.StringFixed(2),
		receipt,
		fmt.Sprintf("%d", t.CreatedBy),
	}
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func summaryRows(d Data) [][]string {
	return [][]string{
		{"Group", d.Group.Name},
		{"From", formatDay(d.Range.From)},
		{"To", formatDay(d.Range.To)},
		{"Total income", d.Stats.TotalIncome.StringFixed(2)},
		{"Total expense", d.Stats.TotalExpense.StringFixed(2)},
		{"Balance", d.Stats.CurrentBalance.StringFixed(2)},
	}
}

type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSX) Extension() string { return FormatXLSX }

// SheetName is the single sheet of an xlsx report.
const SheetName = "Summary"

func (XLSX) Render(_ context.Context, d Data) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	row := 1
	for _, r := range summaryRows(d) {
		if err := setRow(f, row, r); err != nil {
			return nil, err
		}
		row++
	}

	row++
	if err := setRow(f, row, transactionHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(transactionHeader), row)
	if err := f.SetCellStyle(SheetName, first, last, bold); err != nil {
		return nil, err
	}
	row++

	for _, t := range d.Transactions {
		cells := transactionRow(t)
		if err := setRow(f, row, cells); err != nil {
			return nil, err
		}
		// Amounts go in as numbers so the sheet can sum them.
		amountCell, _ := excelize.CoordinatesToCellName(5, row)
		if err := f.SetCellFloat(SheetName, amountCell, t.Amount.InexactFloat64(), 2, 64); err != nil {
			return nil, err
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &vals)
}

type CSV struct{}

func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

func (CSV) Extension() string { return FormatCSV }

func (CSV) Render(_ context.Context, d Data) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	for _, r := range summaryRows(d) {
		if err := w.Write(r); err != nil {
			return nil, err
		}
	}
	if err := w.Write(nil); err != nil {
		return nil, err
	}
	if err := w.Write(transactionHeader); err != nil {
		return nil, err
	}
	for _, t := range d.Transactions {
		if err := w.Write(transactionRow(t)); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
