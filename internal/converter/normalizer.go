// =============================================================================
// FBR Invoicer - Row Normalizer
// =============================================================================
//
// NormalizeRow turns one spreadsheet row into an FBR invoice payload using a
// column mapping produced by the mapping package.
//
// EXTRACTION RULES:
//   - A mapped field reads row[header]; an unmapped field, a mapped header
//     the row does not carry, or a blank cell takes the field default below.
//   - Text values are trimmed. Amounts go through SafeFloat.
//
//   | Field           | Default              |
//   |-----------------|----------------------|
//   | buyer_reg_no    | ""                   |
//   | buyer_name      | ""                   |
//   | buyer_type      | "Unregistered"       |
//   | buyer_province  | "Sindh"              |
//   | buyer_address   | "N/A"                |
//   | invoice_date    | today                |
//   | invoice_ref     | "REF-<rowIndex+1>"   |
//   | hs_code         | ""                   |
//   | product_desc    | "No details"         |
//   | quantity        | 1                    |
//   | uom             | "PCS"                |
//   | rate            | "18"  -> "18%"       |
//   | amounts         | 0                    |
//   | sale_type       | ""                   |
//
// ROW VALIDATION:
//   Value excluding sales tax must be > 0, then the buyer name must be
//   non-empty. Failures come back as *RowError, never as a panic.
//
// =============================================================================

package converter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// Field defaults applied when a column is not mapped.
const (
	DefaultBuyerType     = types.Unregistered
	DefaultBuyerProvince = "Sindh"
	DefaultBuyerAddress  = "N/A"
	DefaultProductDesc   = "No details"
	DefaultUoM           = "PCS"
	defaultRateInput     = "18"
)

// Row validation reasons.
const (
	ReasonValueNotPositive = "Value excluding ST must be greater than 0"
	ReasonBuyerNameMissing = "Buyer name is required"
	ReasonTotalOutOfRange  = "Invoice total is out of range"
)

// RowError is a labelled row failure. Row is 1-based.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
}

// ApplyBuyerRule forces the canonical unregistered identity when the
// registration type mentions "unregistered", the name mentions
// "un-register", or the registration number is the sentinel. Applying it to
// its own output changes nothing.
func ApplyBuyerRule(regNo, name, regType string) (string, string, string) {
	if strings.Contains(strings.ToLower(regType), "unregistered") ||
		strings.Contains(strings.ToLower(name), "un-register") ||
		regNo == types.UnregisteredRegNo {
		return types.UnregisteredRegNo, types.UnregisteredName, types.Unregistered
	}
	return regNo, name, regType
}

// NormalizeRow converts row into an invoice issued by seller. rowIndex is the
// 0-based position of the row among the sheet's data rows; messages and
// results use rowIndex+1. today stands in for the current date so the result
// depends on the arguments only.
//
// Exactly one of the returned values is non-nil.
func NormalizeRow(row map[string]string, m types.ColumnMapping, seller types.SellerProfile, rowIndex int, today time.Time) (result *types.RowResult, err error) {
	rowNumber := rowIndex + 1
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &RowError{Row: rowNumber, Reason: fmt.Sprint(r)}
		}
	}()

	text := func(field types.CanonicalField, def string) string {
		header, ok := m.Header(field)
		if !ok {
			return def
		}
		v := strings.TrimSpace(row[header])
		if v == "" {
			return def
		}
		return v
	}
	amount := func(field types.CanonicalField, def float64) float64 {
		header, ok := m.Header(field)
		if !ok {
			return def
		}
		v, ok := row[header]
		if !ok {
			return def
		}
		return SafeFloat(v, def)
	}

	// Buyer
	regNo, buyerName, regType := ApplyBuyerRule(
		text(types.FieldBuyerRegNo, ""),
		text(types.FieldBuyerName, ""),
		text(types.FieldBuyerType, DefaultBuyerType),
	)
	province := text(types.FieldBuyerProvince, DefaultBuyerProvince)
	address := text(types.FieldBuyerAddress, DefaultBuyerAddress)

	// Invoice
	invoiceDate := dateOnly(today)
	if header, ok := m.Header(types.FieldInvoiceDate); ok {
		if v, ok := row[header]; ok {
			invoiceDate = ParseInvoiceDate(v, today)
		}
	}
	ref := text(types.FieldInvoiceRef, fmt.Sprintf("REF-%d", rowNumber))

	// Item
	item := types.Item{
		HSCode:             text(types.FieldHSCode, ""),
		ProductDescription: text(types.FieldProductDesc, DefaultProductDesc),
		Rate:               FormatRate(text(types.FieldRate, defaultRateInput)),
		UoM:                text(types.FieldUoM, DefaultUoM),
		Quantity:           amount(types.FieldQuantity, 1),

		ValueSalesExcludingST: amount(types.FieldValueExclST, 0),
		SalesTaxApplicable:    amount(types.FieldSalesTax, 0),
		FurtherTax:            amount(types.FieldFurtherTax, 0),
		Discount:              amount(types.FieldDiscount, 0),
		SaleType:              text(types.FieldSaleType, ""),
	}
	item.Recompute()

	if item.ValueSalesExcludingST <= 0 {
		return nil, &RowError{Row: rowNumber, Reason: ReasonValueNotPositive}
	}
	if buyerName == "" {
		return nil, &RowError{Row: rowNumber, Reason: ReasonBuyerNameMissing}
	}
	if math.IsInf(item.TotalValues, 0) || math.IsNaN(item.TotalValues) {
		return nil, &RowError{Row: rowNumber, Reason: ReasonTotalOutOfRange}
	}

	inv := types.Invoice{
		InvoiceType:           types.InvoiceTypeSale,
		InvoiceDate:           invoiceDate.Format("2006-01-02"),
		BuyerNTNCNIC:          regNo,
		BuyerBusinessName:     buyerName,
		BuyerProvince:         province,
		BuyerAddress:          address,
		BuyerRegistrationType: regType,
		InvoiceRefNo:          ref,
		ScenarioID:            types.DefaultScenarioID,
		Items:                 []types.Item{item},
	}
	inv.ApplySeller(seller)

	return &types.RowResult{
		RowNumber: rowNumber,
		Invoice:   inv,
		BuyerName: buyerName,
		Amount:    item.TotalValues,
	}, nil
}
