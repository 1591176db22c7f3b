// =============================================================================
// FBR Invoicer - CSV Reader
// =============================================================================
//
// This module reads invoice sheets exported as CSV. It handles:
//   - Different delimiters (comma, semicolon, pipe, tab)
//   - Headers spanning several rows
//   - A configurable first data row
//   - UTF-8 (with or without BOM), Windows-1252 and ISO-8859-1 input
//
// The result is a types.Sheet, the same shape the workbook reader produces,
// so the rest of the pipeline does not care where rows came from.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
	"github.com/ginjaninja78/fbr-invoicer/internal/xlsxparser"
)

const utf8BOM = "\ufeff"

// =============================================================================
// MAIN PARSING FUNCTION
// =============================================================================

// Parse reads the CSV file at filePath.
func Parse(filePath string, settings config.CSVSettings) (*types.Sheet, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	sheet, err := ParseReader(file, settings)
	if err != nil {
		return nil, err
	}
	sheet.Name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return sheet, nil
}

// ParseReader reads CSV data from r.
func ParseReader(r io.Reader, settings config.CSVSettings) (*types.Sheet, error) {
	decoded, err := decode(r, settings.Encoding)
	if err != nil {
		return nil, err
	}
	csvReader := csv.NewReader(bufio.NewReader(decoded))
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if len(allRows[0]) > 0 {
		allRows[0][0] = strings.TrimPrefix(allRows[0][0], utf8BOM)
	}

	headers, err := extractHeaders(allRows, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	sheet := &types.Sheet{Headers: headers}
	start := settings.DataStartRow - 1
	if start < settings.HeaderRows {
		start = settings.HeaderRows
	}
	for i := start; i < len(allRows); i++ {
		row := allRows[i]
		if isRowEmpty(row) {
			continue
		}
		values := make(map[string]string, len(headers))
		for col, header := range headers {
			if col < len(row) {
				values[header] = strings.TrimSpace(row[col])
			} else {
				values[header] = ""
			}
		}
		sheet.Rows = append(sheet.Rows, values)
		sheet.RowNumbers = append(sheet.RowNumbers, i+1)
	}
	return sheet, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// decode wraps r so it yields UTF-8.
func decode(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(encoding), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return r, nil
	case "WINDOWS-1252", "CP1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// configureReader applies the delimiter and leniency settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Rows may be ragged; quoting in exports is often sloppy.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// extractHeaders merges the first HeaderRows rows into one label per column.
func extractHeaders(allRows [][]string, settings config.CSVSettings) ([]string, error) {
	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}
	if len(allRows) < headerRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	width := 0
	for _, row := range allRows {
		if len(row) > width {
			width = len(row)
		}
	}

	if headerRows == 1 {
		return xlsxparser.CleanHeaders(allRows[0], width), nil
	}

	merged := make([]string, width)
	for col := 0; col < width; col++ {
		var parts []string
		for row := 0; row < headerRows; row++ {
			if col < len(allRows[row]) {
				if v := strings.TrimSpace(allRows[row][col]); v != "" {
					parts = append(parts, v)
				}
			}
		}
		merged[col] = strings.Join(parts, " ")
	}
	return xlsxparser.CleanHeaders(merged, width), nil
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
// STREAMING PARSER (For Large Files)
// =============================================================================

// StreamingParser reads rows one at a time for files too large to hold in
// memory.
//
// USAGE:
//
//	p, err := csvparser.NewStreamingParser(path, settings)
//	if err != nil { ... }
//	defer p.Close()
//	for p.Next() {
//	    row := p.Row()
//	}
//	if err := p.Err(); err != nil { ... }
type StreamingParser struct {
	file       *os.File
	reader     *csv.Reader
	headers    []string
	currentRow map[string]string
	rowNumber  int
	err        error
	settings   config.CSVSettings
}

// NewStreamingParser opens filePath and consumes its header rows.
func NewStreamingParser(filePath string, settings config.CSVSettings) (*StreamingParser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	decoded, err := decode(file, settings.Encoding)
	if err != nil {
		file.Close()
		return nil, err
	}

	reader := csv.NewReader(bufio.NewReader(decoded))
	configureReader(reader, settings)

	p := &StreamingParser{file: file, reader: reader, settings: settings}
	if err := p.readHeaders(); err != nil {
		file.Close()
		return nil, err
	}
	if err := p.skipToDataStart(); err != nil {
		file.Close()
		return nil, err
	}
	return p, nil
}

func (p *StreamingParser) readHeaders() error {
	n := p.settings.HeaderRows
	if n <= 0 {
		n = 1
	}
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row, err := p.reader.Read()
		if err == io.EOF {
			return fmt.Errorf("unexpected end of file while reading headers")
		}
		if err != nil {
			return fmt.Errorf("error reading header row %d: %w", i+1, err)
		}
		if i == 0 && len(row) > 0 {
			row[0] = strings.TrimPrefix(row[0], utf8BOM)
		}
		rows = append(rows, row)
		p.rowNumber++
	}

	headers, err := extractHeaders(rows, p.settings)
	if err != nil {
		return err
	}
	p.headers = headers
	return nil
}

func (p *StreamingParser) skipToDataStart() error {
	for p.rowNumber < p.settings.DataStartRow-1 {
		if _, err := p.reader.Read(); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("error skipping to data start: %w", err)
		}
		p.rowNumber++
	}
	return nil
}

// Next advances to the next non-empty row.
func (p *StreamingParser) Next() bool {
	for p.err == nil {
		row, err := p.reader.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			p.err = fmt.Errorf("error reading row %d: %w", p.rowNumber+1, err)
			return false
		}
		p.rowNumber++
		if isRowEmpty(row) {
			continue
		}

		p.currentRow = make(map[string]string, len(p.headers))
		for i, header := range p.headers {
			if i < len(row) {
				p.currentRow[header] = strings.TrimSpace(row[i])
			} else {
				p.currentRow[header] = ""
			}
		}
		return true
	}
	return false
}

// Row returns the current row.
func (p *StreamingParser) Row() map[string]string { return p.currentRow }

// Headers returns the cleaned header names.
func (p *StreamingParser) Headers() []string { return p.headers }

// RowNumber returns the 1-based line of the current row.
func (p *StreamingParser) RowNumber() int { return p.rowNumber }

// Err returns the first read error, if any.
func (p *StreamingParser) Err() error { return p.err }

// Close releases the underlying file.
func (p *StreamingParser) Close() error { return p.file.Close() }
