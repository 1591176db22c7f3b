// =============================================================================
// FBR Invoicer - Payload Writer
// =============================================================================
//
// This module writes normalized invoices to disk as the JSON documents the
// FBR gateway accepts, one file per invoice.
//
// OUTPUT STRUCTURE:
//   {
//     "sellerNTNCNIC": "...",
//     ...
//     "items": [ { "hsCode": "...", ... } ]
//   }
//
// File names come from utils.GenerateOutputFileName, so the configured
// uuid_format decides them. {row}, {ntn} and {ref} are filled from the row.
//
// =============================================================================

package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
	"github.com/ginjaninja78/fbr-invoicer/pkg/utils"
)

// PayloadOptions control how payload files are written.
type PayloadOptions struct {
	// NameFormat is the file name template. Defaults to "invoice_{row}_{uuid}".
	NameFormat string

	// Indent is used for pretty printing. Empty writes compact JSON.
	Indent string

	// WithRowMeta wraps each invoice as {"row_number", "buyer_name",
	// "invoice_data"} instead of the bare payload.
	WithRowMeta bool
}

// DefaultPayloadOptions returns indented bare payloads.
func DefaultPayloadOptions() PayloadOptions {
	return PayloadOptions{
		NameFormat: "invoice_{row}_{uuid}",
		Indent:     "  ",
	}
}

// WritePayloads writes one file per result into dir and returns the paths in
// input order. dir is created if needed.
func WritePayloads(dir string, results []types.RowResult, opts PayloadOptions) ([]string, error) {
	if opts.NameFormat == "" {
		opts.NameFormat = DefaultPayloadOptions().NameFormat
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(results))
	for _, r := range results {
		data, err := Marshal(r, opts)
		if err != nil {
			return paths, fmt.Errorf("row %d: %w", r.RowNumber, err)
		}

		name := utils.GenerateOutputFileName(opts.NameFormat, map[string]string{
			"row": strconv.Itoa(r.RowNumber),
			"ntn": r.Invoice.SellerNTNCNIC,
			"ref": r.Invoice.InvoiceRefNo,
		})
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Marshal renders one result the way WritePayloads stores it.
func Marshal(r types.RowResult, opts PayloadOptions) ([]byte, error) {
	var v any = r.Invoice
	if opts.WithRowMeta {
		v = r
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if opts.Indent != "" {
		enc.SetIndent("", opts.Indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode invoice: %w", err)
	}
	return buf.Bytes(), nil
}
