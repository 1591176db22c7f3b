package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/ginjaninja78/fbr-invoicer/internal/fbr"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// BundleName is the archive name for a seller's posted invoices on day.
func BundleName(ntn string, day time.Time) string {
	return fmt.Sprintf("Invoices_%s_%s.zip", ntn, day.Format("2006-01-02"))
}

// EntryName names the zip entry of one submission.
func EntryName(rowNumber int, buyerName string) string {
	return fmt.Sprintf("Invoice_Row_%d_%s.json", rowNumber, SafeName(buyerName, 20))
}

// SafeName keeps letters, digits, spaces, '-' and '_' from s, trims
// trailing spaces and cuts the result to max runes.
func SafeName(s string, max int) string {
	var b strings.Builder
	for _, c := range s {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == ' ' || c == '-' || c == '_' {
			b.WriteRune(c)
		}
	}
	r := []rune(strings.TrimRight(b.String(), " "))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

type bundleEntry struct {
	Invoice       types.Invoice  `json:"invoice"`
	Response      map[string]any `json:"response"`
	InvoiceNumber string         `json:"invoice_number,omitempty"`
}

// BundleSubmissions writes a zip of every successful submission to w and
// returns how many entries it holds. Failed submissions are left out.
func BundleSubmissions(w io.Writer, subs []fbr.Submission) (int, error) {
	zw := zip.NewWriter(w)
	n := 0
	for _, s := range subs {
		if !s.Success {
			continue
		}
		f, err := zw.Create(EntryName(s.RowNumber, s.BuyerName))
		if err != nil {
			zw.Close()
			return n, fmt.Errorf("failed to add row %d: %w", s.RowNumber, err)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(bundleEntry{Invoice: s.Invoice, Response: s.Response, InvoiceNumber: s.InvoiceNumber}); err != nil {
			zw.Close()
			return n, fmt.Errorf("failed to write row %d: %w", s.RowNumber, err)
		}
		n++
	}
	if err := zw.Close(); err != nil {
		return n, fmt.Errorf("failed to finish bundle: %w", err)
	}
	return n, nil
}
