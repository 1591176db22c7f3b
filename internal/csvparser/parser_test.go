package csvparser

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
)

func settings(delim string) config.CSVSettings {
	s := config.DefaultCSVSettings()
	s.Delimiter = delim
	return s
}

func TestParseReader_SkipsBOMAndEmptyRows(t *testing.T) {
	data := "\ufeffBuyer Name,Amount\nAcme,100\n,\nBeta, 200\n"

	sheet, err := ParseReader(strings.NewReader(data), settings(","))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if !reflect.DeepEqual(sheet.Headers, []string{"Buyer Name", "Amount"}) {
		t.Fatalf("unexpected headers %q", sheet.Headers)
	}
	if sheet.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", sheet.Len())
	}
	if sheet.Rows[1]["Buyer Name"] != "Beta" || sheet.Rows[1]["Amount"] != "200" {
		t.Fatalf("unexpected second row %v", sheet.Rows[1])
	}
	if !reflect.DeepEqual(sheet.RowNumbers, []int{2, 4}) {
		t.Fatalf("unexpected row numbers %v", sheet.RowNumbers)
	}
}

func TestParseReader_Delimiters(t *testing.T) {
	tests := []struct {
		delim string
		data  string
	}{
		{";", "Buyer;Amount\nAcme;100\n"},
		{"semicolon", "Buyer;Amount\nAcme;100\n"},
		{"tab", "Buyer\tAmount\nAcme\t100\n"},
		{"|", "Buyer|Amount\nAcme|100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.delim, func(t *testing.T) {
			sheet, err := ParseReader(strings.NewReader(tt.data), settings(tt.delim))
			if err != nil {
				t.Fatalf("ParseReader: %v", err)
			}
			if sheet.Rows[0]["Buyer"] != "Acme" || sheet.Rows[0]["Amount"] != "100" {
				t.Fatalf("unexpected row %v", sheet.Rows[0])
			}
		})
	}
}

func TestParseReader_MultiRowHeaders(t *testing.T) {
	s := settings(",")
	s.HeaderRows = 2
	s.DataStartRow = 3

	sheet, err := ParseReader(strings.NewReader("Buyer,Value\nName,Excl ST\nAcme,100\n"), s)
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if !reflect.DeepEqual(sheet.Headers, []string{"Buyer Name", "Value Excl ST"}) {
		t.Fatalf("unexpected headers %q", sheet.Headers)
	}
	if sheet.Rows[0]["Value Excl ST"] != "100" || sheet.RowNumbers[0] != 3 {
		t.Fatalf("unexpected row %v at %v", sheet.Rows[0], sheet.RowNumbers)
	}
}

func TestParseReader_DataStartRow(t *testing.T) {
	s := settings(",")
	s.DataStartRow = 3

	sheet, err := ParseReader(strings.NewReader("Buyer\nignored\nAcme\n"), s)
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if sheet.Len() != 1 || sheet.Rows[0]["Buyer"] != "Acme" || sheet.RowNumbers[0] != 3 {
		t.Fatalf("unexpected rows %v %v", sheet.Rows, sheet.RowNumbers)
	}
}

func TestParseReader_RaggedAndDuplicateHeaders(t *testing.T) {
	sheet, err := ParseReader(strings.NewReader("Name,,Name\n1,2\n"), settings(","))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if !reflect.DeepEqual(sheet.Headers, []string{"Name", "Column_2", "Name.1"}) {
		t.Fatalf("unexpected headers %q", sheet.Headers)
	}
	if v, ok := sheet.Rows[0]["Name.1"]; !ok || v != "" {
		t.Fatalf("short row should pad with empty values, got %v", sheet.Rows[0])
	}
}

func TestParseReader_Windows1252(t *testing.T) {
	s := settings(",")
	s.Encoding = "Windows-1252"

	sheet, err := ParseReader(strings.NewReader("Buyer,Amount\nCaf\xe9,10\n"), s)
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if got := sheet.Rows[0]["Buyer"]; got != "Café" {
		t.Fatalf("expected Café, got %q", got)
	}
}

func TestParseReader_Errors(t *testing.T) {
	s := settings(",")
	s.Encoding = "EBCDIC"
	if _, err := ParseReader(strings.NewReader("a\n1\n"), s); err == nil {
		t.Error("expected unsupported encoding error")
	}
	if _, err := ParseReader(strings.NewReader(""), settings(",")); err == nil {
		t.Error("expected empty file error")
	}
	s = settings(",")
	s.HeaderRows = 3
	if _, err := ParseReader(strings.NewReader("a\n1\n"), s); err == nil {
		t.Error("expected header_rows error")
	}
}

func writeTemp(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParse_NamesSheetAfterFile(t *testing.T) {
	path := writeTemp(t, "march_sales.csv", "Buyer,Amount\nAcme,1\n")

	sheet, err := Parse(path, settings(","))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sheet.Name != "march_sales" {
		t.Fatalf("expected sheet name march_sales, got %q", sheet.Name)
	}
}

func TestStreamingParser(t *testing.T) {
	path := writeTemp(t, "big.csv", "\ufeffBuyer;Amount\nAcme;1\n;\nBeta;2\n")

	p, err := NewStreamingParser(path, settings(";"))
	if err != nil {
		t.Fatalf("NewStreamingParser: %v", err)
	}
	defer p.Close()

	if !reflect.DeepEqual(p.Headers(), []string{"Buyer", "Amount"}) {
		t.Fatalf("unexpected headers %q", p.Headers())
	}

	var buyers []string
	var lines []int
	for p.Next() {
		buyers = append(buyers, p.Row()["Buyer"])
		lines = append(lines, p.RowNumber())
	}
	if err := p.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if !reflect.DeepEqual(buyers, []string{"Acme", "Beta"}) || !reflect.DeepEqual(lines, []int{2, 4}) {
		t.Fatalf("unexpected rows %v at %v", buyers, lines)
	}
}
