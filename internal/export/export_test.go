package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fbr-invoicer/internal/converter"
	"github.com/ginjaninja78/fbr-invoicer/internal/fbr"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

func sampleResult(row int, buyer string, value float64) types.RowResult {
	item := types.Item{HSCode: "0101.2100", Rate: "18%", UoM: "PCS", Quantity: 1, ValueSalesExcludingST: value}
	item.Recompute()
	return types.RowResult{
		RowNumber: row,
		BuyerName: buyer,
		Amount:    item.TotalValues,
		Invoice: types.Invoice{
			SellerNTNCNIC:     "1234567",
			BuyerBusinessName: buyer,
			InvoiceRefNo:      "REF-" + buyer,
			InvoiceDate:       "2024-05-01",
			Items:             []types.Item{item},
		},
	}
}

func TestWritePayloads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	results := []types.RowResult{sampleResult(1, "Acme", 100), sampleResult(2, "Beta", 200)}

	paths, err := WritePayloads(dir, results, PayloadOptions{NameFormat: "inv_{ntn}_{row}", Indent: "  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "inv_1234567_1.json" || filepath.Base(paths[1]) != "inv_1234567_2.json" {
		t.Fatalf("unexpected paths %v", paths)
	}

	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var inv map[string]any
	if err := json.Unmarshal(data, &inv); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if inv["buyerBusinessName"] != "Beta" || inv["sellerNTNCNIC"] != "1234567" {
		t.Fatalf("unexpected payload %v", inv)
	}
	if _, ok := inv["items"].([]any); !ok {
		t.Fatalf("expected items array, got %T", inv["items"])
	}
}

func TestMarshal_WithRowMeta(t *testing.T) {
	data, err := Marshal(sampleResult(3, "Acme", 10), PayloadOptions{WithRowMeta: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v map[string]any
	json.Unmarshal(data, &v)
	if v["row_number"] != float64(3) || v["invoice_data"] == nil {
		t.Fatalf("expected row meta wrapper, got %s", data)
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"Acme & Sons (Pvt) Ltd.":          "Acme  Sons Pvt Ltd",
		"A&B (Pvt.) Ltd., Karachi Branch": "AB Pvt Ltd Karachi B",
		"Un-Registered":                   "Un-Registered",
		"a_b c   ":                        "a_b c",
		"":                                "",
	}
	for in, want := range cases {
		if got := SafeName(in, 20); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBundleNames(t *testing.T) {
	day := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	if got := BundleName("1234567", day); got != "Invoices_1234567_2024-05-01.zip" {
		t.Errorf("unexpected bundle name %q", got)
	}
	if got := EntryName(4, "Acme Traders"); got != "Invoice_Row_4_Acme Traders.json" {
		t.Errorf("unexpected entry name %q", got)
	}
}

func TestBundleSubmissions(t *testing.T) {
	subs := []fbr.Submission{
		{RowNumber: 1, BuyerName: "Acme", Invoice: sampleResult(1, "Acme", 1).Invoice, Success: true, StatusCode: 200,
			Response: map[string]any{"invoiceNumber": "FBR-1"}, InvoiceNumber: "FBR-1"},
		{RowNumber: 2, BuyerName: "Beta", Success: false, StatusCode: 400},
		{RowNumber: 3, BuyerName: "Gamma/Delta", Success: true, StatusCode: 200, Response: map[string]any{}},
	}

	var buf bytes.Buffer
	n, err := BundleSubmissions(&buf, subs)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 entries, got %d %v", n, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "Invoice_Row_1_Acme.json,Invoice_Row_3_GammaDelta.json" {
		t.Fatalf("unexpected entries %s", got)
	}

	rc, _ := zr.File[0].Open()
	defer rc.Close()
	var entry map[string]any
	if err := json.NewDecoder(rc).Decode(&entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if entry["invoice_number"] != "FBR-1" || entry["invoice"] == nil {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestWriteReport(t *testing.T) {
	summary := converter.Summarize([]types.RowOutcome{
		{RowNumber: 1, Result: ptr(sampleResult(1, "Acme", 100))},
		{RowNumber: 2, Error: "Row 2: Buyer name is required"},
		{RowNumber: 3, Result: ptr(sampleResult(3, "Beta", 50.5))},
	})
	subs := []fbr.Submission{{RowNumber: 1, BuyerName: "Acme", StatusCode: 200, Success: true, InvoiceNumber: "FBR-1"}}

	path := filepath.Join(t.TempDir(), "reports", "run.xlsx")
	if err := WriteReport(path, summary, subs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()

	if got := strings.Join(f.GetSheetList(), ","); got != "Invoices,Errors,Submissions" {
		t.Fatalf("unexpected sheets %s", got)
	}
	invRows, _ := f.GetRows(SheetInvoices)
	if len(invRows) != 4 || invRows[1][1] != "Acme" || invRows[3][7] != "150.5" {
		t.Fatalf("unexpected invoice rows %v", invRows)
	}
	errRows, _ := f.GetRows(SheetErrors)
	if len(errRows) != 2 || errRows[1][1] != "Row 2: Buyer name is required" {
		t.Fatalf("unexpected error rows %v", errRows)
	}
	subRows, _ := f.GetRows(SheetSubmissions)
	if len(subRows) != 2 || subRows[1][4] != "FBR-1" {
		t.Fatalf("unexpected submission rows %v", subRows)
	}
}

func ptr[T any](v T) *T { return &v }
