package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fbr-invoicer/internal/converter"
	"github.com/ginjaninja78/fbr-invoicer/internal/fbr"
)

// Report sheet names.
const (
	SheetInvoices    = "Invoices"
	SheetErrors      = "Errors"
	SheetSubmissions = "Submissions"
)

// WriteReport saves a results workbook at path with an Invoices sheet, an
// Errors sheet and, when subs is not empty, a Submissions sheet.
func WriteReport(path string, summary *converter.Summary, subs []fbr.Submission) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetInvoices); err != nil {
		return err
	}
	rows := [][]any{{"Row", "Buyer", "Reference", "Date", "HS Code", "Value Excl. ST", "Sales Tax", "Total"}}
	for _, r := range summary.Results {
		inv := r.Invoice
		var hs string
		var value, tax float64
		if len(inv.Items) > 0 {
			hs, value, tax = inv.Items[0].HSCode, inv.Items[0].ValueSalesExcludingST, inv.Items[0].SalesTaxApplicable
		}
		rows = append(rows, []any{r.RowNumber, r.BuyerName, inv.InvoiceRefNo, inv.InvoiceDate, hs, value, tax, r.Amount})
	}
	rows = append(rows, []any{"", "", "", "", "", "", "Total", amount(summary.TotalAmount)})
	if err := writeRows(f, SheetInvoices, rows, header); err != nil {
		return err
	}

	errRows := [][]any{{"Row", "Error"}}
	for _, o := range summary.Outcomes {
		if !o.OK() {
			errRows = append(errRows, []any{o.RowNumber, o.Error})
		}
	}
	if _, err := f.NewSheet(SheetErrors); err != nil {
		return err
	}
	if err := writeRows(f, SheetErrors, errRows, header); err != nil {
		return err
	}

	if len(subs) > 0 {
		subRows := [][]any{{"Row", "Buyer", "Status Code", "Success", "FBR Invoice Number"}}
		for _, s := range subs {
			subRows = append(subRows, []any{s.RowNumber, s.BuyerName, s.StatusCode, s.Success, s.InvoiceNumber})
		}
		if _, err := f.NewSheet(SheetSubmissions); err != nil {
			return err
		}
		if err := writeRows(f, SheetSubmissions, subRows, header); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}

func amount(d decimal.Decimal) float64 {
	v, _ := d.Round(2).Float64()
	return v
}
