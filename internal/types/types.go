// =============================================================================
// FBR Invoicer - Shared Types
// =============================================================================
//
// This package contains the invoice data model shared by the mapper, the row
// normalizer, the validator, the FBR client and the exporters. Keeping these
// types in one leaf package avoids import cycles between those modules.
//
// JSON TAGS:
//   The Invoice and Item tags are the exact wire names expected by the FBR
//   digital invoicing API. Do not rename them.
//
// =============================================================================

package types

import "time"

// =============================================================================
// CANONICAL FIELDS
// =============================================================================

// CanonicalField is one of the logical invoice attributes the system
// understands, independent of how a spreadsheet names its columns.
type CanonicalField string

const (
	FieldBuyerRegNo    CanonicalField = "buyer_reg_no"
	FieldBuyerName     CanonicalField = "buyer_name"
	FieldBuyerType     CanonicalField = "buyer_type"
	FieldBuyerProvince CanonicalField = "buyer_province"
	FieldBuyerAddress  CanonicalField = "buyer_address"
	FieldInvoiceDate   CanonicalField = "invoice_date"
	FieldInvoiceRef    CanonicalField = "invoice_ref"
	FieldHSCode        CanonicalField = "hs_code"
	FieldProductDesc   CanonicalField = "product_desc"
	FieldQuantity      CanonicalField = "quantity"
	FieldUoM           CanonicalField = "uom"
	FieldRate          CanonicalField = "rate"
	FieldValueExclST   CanonicalField = "value_excl_st"
	FieldSalesTax      CanonicalField = "sales_tax"
	FieldFurtherTax    CanonicalField = "further_tax"
	FieldDiscount      CanonicalField = "discount"
	FieldSaleType      CanonicalField = "sale_type"
)

var allFields = []CanonicalField{
	FieldBuyerRegNo,
	FieldBuyerName,
	FieldBuyerType,
	FieldBuyerProvince,
	FieldBuyerAddress,
	FieldInvoiceDate,
	FieldInvoiceRef,
	FieldHSCode,
	FieldProductDesc,
	FieldQuantity,
	FieldUoM,
	FieldRate,
	FieldValueExclST,
	FieldSalesTax,
	FieldFurtherTax,
	FieldDiscount,
	FieldSaleType,
}

// AllFields returns every canonical field in its fixed display order.
func AllFields() []CanonicalField {
	out := make([]CanonicalField, len(allFields))
	copy(out, allFields)
	return out
}

// ParseField resolves a field key such as "buyer_name".
func ParseField(key string) (CanonicalField, bool) {
	for _, f := range allFields {
		if string(f) == key {
			return f, true
		}
	}
	return "", false
}

// Label renders a field key for humans: "value_excl_st" -> "Value Excl St".
func (f CanonicalField) Label() string {
	b := []byte(string(f))
	upper := true
	for i, c := range b {
		switch {
		case c == '_':
			b[i] = ' '
			upper = true
		case upper && c >= 'a' && c <= 'z':
			b[i] = c - 'a' + 'A'
			upper = false
		default:
			upper = false
		}
	}
	return string(b)
}

// ColumnMapping binds canonical fields to source spreadsheet headers.
// A field that is absent from the map is unmapped.
type ColumnMapping map[CanonicalField]string

// Header returns the header bound to field, if any.
func (m ColumnMapping) Header(field CanonicalField) (string, bool) {
	h, ok := m[field]
	if !ok || h == "" {
		return "", false
	}
	return h, true
}

// =============================================================================
// FIXED VALUES
// =============================================================================

const (
	UnregisteredRegNo = "9999999"
	UnregisteredName  = "Un-Registered"
	Unregistered      = "Unregistered"
	Registered        = "Registered"

	InvoiceTypeSale   = "Sale Invoice"
	DefaultScenarioID = "SN002"
	DefaultRate       = "18%"
)

// Provinces lists the province names accepted by the FBR API.
var Provinces = []string{
	"Sindh",
	"Punjab",
	"Khyber Pakhtunkhwa",
	"Balochistan",
	"Gilgit-Baltistan",
	"Azad Kashmir",
	"Islamabad Capital Territory",
}

// IsProvince reports whether name is one of Provinces (exact match).
func IsProvince(name string) bool {
	for _, p := range Provinces {
		if p == name {
			return true
		}
	}
	return false
}

// =============================================================================
// SELLER
// =============================================================================

// SellerProfile is the registered seller an invoice is issued under.
type SellerProfile struct {
	ID           int64     `json:"id" yaml:"id"`
	NTNCNIC      string    `json:"seller_ntn_cnic" yaml:"seller_ntn_cnic"`
	BusinessName string    `json:"seller_business_name" yaml:"seller_business_name"`
	Province     string    `json:"seller_province" yaml:"seller_province"`
	Address      string    `json:"seller_address" yaml:"seller_address"`
	BearerToken  string    `json:"bearer_token,omitempty" yaml:"bearer_token"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

// Redacted returns a copy safe to print or return over HTTP.
func (s SellerProfile) Redacted() SellerProfile {
	if s.BearerToken != "" {
		s.BearerToken = "****"
	}
	return s
}

// =============================================================================
// INVOICE PAYLOAD
// =============================================================================

// Invoice is the document submitted to the FBR validate and post endpoints.
type Invoice struct {
	SellerNTNCNIC         string `json:"sellerNTNCNIC" yaml:"sellerNTNCNIC"`
	SellerBusinessName    string `json:"sellerBusinessName" yaml:"sellerBusinessName"`
	SellerProvince        string `json:"sellerProvince" yaml:"sellerProvince"`
	SellerAddress         string `json:"sellerAddress" yaml:"sellerAddress"`
	InvoiceType           string `json:"invoiceType" yaml:"invoiceType"`
	InvoiceDate           string `json:"invoiceDate" yaml:"invoiceDate"`
	BuyerNTNCNIC          string `json:"buyerNTNCNIC" yaml:"buyerNTNCNIC"`
	BuyerBusinessName     string `json:"buyerBusinessName" yaml:"buyerBusinessName"`
	BuyerProvince         string `json:"buyerProvince" yaml:"buyerProvince"`
	BuyerAddress          string `json:"buyerAddress" yaml:"buyerAddress"`
	BuyerRegistrationType string `json:"buyerRegistrationType" yaml:"buyerRegistrationType"`
	InvoiceRefNo          string `json:"invoiceRefNo" yaml:"invoiceRefNo"`
	ScenarioID            string `json:"scenarioId" yaml:"scenarioId"`
	Items                 []Item `json:"items" yaml:"items"`
}

// Item is a single invoice line.
type Item struct {
	HSCode                          string  `json:"hsCode" yaml:"hsCode"`
	ProductDescription              string  `json:"productDescription" yaml:"productDescription"`
	Rate                            string  `json:"rate" yaml:"rate"`
	UoM                             string  `json:"uoM" yaml:"uoM"`
	Quantity                        float64 `json:"quantity" yaml:"quantity"`
	ValueSalesExcludingST           float64 `json:"valueSalesExcludingST" yaml:"valueSalesExcludingST"`
	SalesTaxApplicable              float64 `json:"salesTaxApplicable" yaml:"salesTaxApplicable"`
	FurtherTax                      float64 `json:"furtherTax" yaml:"furtherTax"`
	ExtraTax                        float64 `json:"extraTax" yaml:"extraTax"`
	SalesTaxWithheldAtSource        float64 `json:"salesTaxWithheldAtSource" yaml:"salesTaxWithheldAtSource"`
	FixedNotifiedValueOrRetailPrice float64 `json:"fixedNotifiedValueOrRetailPrice" yaml:"fixedNotifiedValueOrRetailPrice"`
	FedPayable                      float64 `json:"fedPayable" yaml:"fedPayable"`
	Discount                        float64 `json:"discount" yaml:"discount"`
	TotalValues                     float64 `json:"totalValues" yaml:"totalValues"`
	SaleType                        string  `json:"saleType" yaml:"saleType"`
	SroScheduleNo                   string  `json:"sroScheduleNo" yaml:"sroScheduleNo"`
	SroItemSerialNo                 string  `json:"sroItemSerialNo" yaml:"sroItemSerialNo"`
}

// ComputeTotal is the only place an invoice total is derived. Both the
// spreadsheet path and the single-invoice path go through it.
func ComputeTotal(value, salesTax, furtherTax, extraTax, discount float64) float64 {
	return value + salesTax + furtherTax + extraTax - discount
}

// Recompute sets TotalValues from the item's own amounts.
func (it *Item) Recompute() {
	it.TotalValues = ComputeTotal(it.ValueSalesExcludingST, it.SalesTaxApplicable, it.FurtherTax, it.ExtraTax, it.Discount)
}

// ApplySeller copies the seller fields into the invoice header.
func (inv *Invoice) ApplySeller(s SellerProfile) {
	inv.SellerNTNCNIC = s.NTNCNIC
	inv.SellerBusinessName = s.BusinessName
	inv.SellerProvince = s.Province
	inv.SellerAddress = s.Address
}

// Total returns the sum of TotalValues over all items.
func (inv Invoice) Total() float64 {
	var t float64
	for _, it := range inv.Items {
		t += it.TotalValues
	}
	return t
}

// =============================================================================
// ROW OUTCOMES
// =============================================================================

// RowResult is a successfully normalized spreadsheet row. BuyerName and
// Amount always mirror the corresponding fields inside Invoice.
type RowResult struct {
	RowNumber int     `json:"row_number"`
	Invoice   Invoice `json:"invoice_data"`
	BuyerName string  `json:"buyer_name"`
	Amount    float64 `json:"amount"`
}

// RowOutcome is the per-row result of normalization. Exactly one of Result
// and Error is set.
type RowOutcome struct {
	RowNumber int        `json:"row_number"`
	Result    *RowResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// OK reports whether the row normalized successfully.
func (o RowOutcome) OK() bool {
	return o.Result != nil
}

// =============================================================================
// SPREADSHEET INPUT
// =============================================================================

// Sheet is one table read from a workbook or CSV file. Rows are keyed by
// header; RowNumbers holds the 1-based source line of each row.
type Sheet struct {
	Name       string
	Headers    []string
	Rows       []map[string]string
	RowNumbers []int
}

// Len returns the number of data rows.
func (s *Sheet) Len() int {
	return len(s.Rows)
}
