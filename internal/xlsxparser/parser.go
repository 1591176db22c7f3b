// =============================================================================
// FBR Invoicer - Workbook Reader
// =============================================================================
//
// This module reads invoice workbooks into header-keyed rows.
//
// SUPPORTED FORMATS:
//   .xlsx / .xlsm  - Office Open XML, read with excelize
//   .xls           - legacy BIFF8, read with xlsReader
//   Files with a misleading extension are retried with the other reader.
//
// SHEET LAYOUT:
//   The first non-empty row of a sheet is its header row. Blank headers are
//   named Column_<n>; a repeated header gets a ".<k>" suffix so every column
//   stays addressable. Empty data rows are skipped.
//
// SHEET SELECTION:
//   PickSheet prefers the first non-empty sheet whose headers look like
//   invoice data and otherwise falls back to the first non-empty sheet.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// ErrNoData is returned when no sheet holds a data row.
var ErrNoData = errors.New("no data found in workbook")

// invoiceKeywords mark a sheet as likely invoice data when any of them
// appears in its joined, lowercased headers.
var invoiceKeywords = []string{"buyer", "invoice", "registration", "name", "amount", "value", "tax"}

// =============================================================================
// WORKBOOK STRUCTURE
// =============================================================================

// Workbook is every sheet of one file, in workbook order.
type Workbook struct {
	Source string
	Sheets []types.Sheet
}

// Open reads the workbook at path.
func Open(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return OpenReader(f, path)
}

// OpenReader reads a workbook from r. name is only used to pick which reader
// to try first.
func OpenReader(r io.Reader, name string) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}

	readers := []func([]byte) ([]types.Sheet, error){readXLSX, readXLS}
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		readers = []func([]byte) ([]types.Sheet, error){readXLS, readXLSX}
	}

	var firstErr error
	for _, read := range readers {
		sheets, err := read(data)
		if err == nil {
			return &Workbook{Source: name, Sheets: sheets}, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("unsupported workbook %s: %w", filepath.Base(name), firstErr)
}

func readXLSX(data []byte) ([]types.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	defer f.Close()

	var sheets []types.Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("xlsx: failed to read rows of %q: %w", name, err)
		}
		sheets = append(sheets, BuildSheet(name, rows))
	}
	return sheets, nil
}

func readXLS(data []byte) ([]types.Sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xls: %w", err)
	}

	var sheets []types.Sheet
	for i := range wb.GetSheets() {
		sheet, err := wb.GetSheet(i)
		if err != nil {
			return nil, fmt.Errorf("xls: failed to open sheet %d: %w", i, err)
		}
		var raw [][]string
		for _, row := range sheet.GetRows() {
			var cells []string
			for _, cell := range row.GetCols() {
				cells = append(cells, cell.GetString())
			}
			raw = append(raw, cells)
		}
		sheets = append(sheets, BuildSheet(sheet.GetName(), raw))
	}
	return sheets, nil
}

// =============================================================================
// SHEET CONSTRUCTION
// =============================================================================

// BuildSheet turns raw cell rows into a header-keyed Sheet.
func BuildSheet(name string, raw [][]string) types.Sheet {
	sheet := types.Sheet{Name: name}

	headerAt := -1
	for i, row := range raw {
		if !isRowEmpty(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return sheet
	}

	width := 0
	for _, row := range raw[headerAt:] {
		if len(row) > width {
			width = len(row)
		}
	}
	sheet.Headers = CleanHeaders(raw[headerAt], width)

	for i := headerAt + 1; i < len(raw); i++ {
		row := raw[i]
		if isRowEmpty(row) {
			continue
		}
		values := make(map[string]string, len(sheet.Headers))
		for col, header := range sheet.Headers {
			if col < len(row) {
				values[header] = row[col]
			} else {
				values[header] = ""
			}
		}
		sheet.Rows = append(sheet.Rows, values)
		sheet.RowNumbers = append(sheet.RowNumbers, i+1)
	}
	return sheet
}

// CleanHeaders trims headers, pads them to width, names blank ones
// Column_<n> and suffixes repeats with ".<k>".
func CleanHeaders(headers []string, width int) []string {
	if width < len(headers) {
		width = len(headers)
	}
	cleaned := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		h := ""
		if i < len(headers) {
			h = strings.TrimSpace(headers[i])
		}
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		cleaned[i] = h
	}
	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// SHEET SELECTION
// =============================================================================

// PickSheet chooses the sheet holding invoice rows.
func PickSheet(wb *Workbook) (*types.Sheet, error) {
	var fallback *types.Sheet
	for i := range wb.Sheets {
		s := &wb.Sheets[i]
		if s.Len() == 0 {
			continue
		}
		if fallback == nil {
			fallback = s
		}
		if LooksLikeInvoices(s.Headers) {
			return s, nil
		}
	}
	if fallback == nil {
		return nil, ErrNoData
	}
	return fallback, nil
}

// LooksLikeInvoices reports whether headers mention any invoice keyword.
func LooksLikeInvoices(headers []string) bool {
	joined := strings.ToLower(strings.Join(headers, " "))
	for _, kw := range invoiceKeywords {
		if strings.Contains(joined, kw) {
			return true
		}
	}
	return false
}

// Sheet returns the sheet called name, compared case-insensitively.
func (wb *Workbook) Sheet(name string) (*types.Sheet, error) {
	for i := range wb.Sheets {
		if strings.EqualFold(strings.TrimSpace(wb.Sheets[i].Name), strings.TrimSpace(name)) {
			if wb.Sheets[i].Len() == 0 {
				return nil, fmt.Errorf("sheet %q: %w", name, ErrNoData)
			}
			return &wb.Sheets[i], nil
		}
	}
	return nil, fmt.Errorf("sheet %q not found in %s", name, filepath.Base(wb.Source))
}
