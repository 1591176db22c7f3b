// =============================================================================
// FBR Invoicer - Validation Engine
// =============================================================================
//
// This module checks an invoice payload locally before it is sent to the FBR
// validate or post endpoint.
//
// VALIDATION LEVELS:
//   1. Header: buyer identity and scenario must be present
//   2. Item: HS code, description, rate and unit of measure must be present,
//      and the value excluding sales tax must be positive
//   3. Advisory: values the API is likely to reject (unknown province,
//      unexpected registration type, non ISO date, inconsistent total)
//
// SEVERITY:
//   "error"   - the invoice must not be submitted
//   "warning" - reported, submission may continue
//
// =============================================================================

package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// MsgValueNotPositive is reported when an item's value excluding sales tax is
// zero or negative.
const MsgValueNotPositive = "Value (Excluding Sales Tax) must be greater than 0"

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError is a single finding against an invoice.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string `json:"severity"`

	// Field is the FBR payload key, e.g. "buyerProvince" or "items[0].hsCode".
	Field string `json:"field"`

	// Value is the offending value as text.
	Value string `json:"value,omitempty"`

	// Rule names the check: required, positive, province, registration_type,
	// date_format, total.
	Rule string `json:"rule"`

	// Message is shown to the user as is.
	Message string `json:"message"`

	// RowNumber is the 1-based sheet row the invoice came from, 0 for a
	// single invoice.
	RowNumber int `json:"row_number,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.RowNumber > 0 {
		return fmt.Sprintf("[%s] Row %d, %s: %s", strings.ToUpper(e.Severity), e.RowNumber, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(e.Severity), e.Field, e.Message)
}

// Result summarizes validation across one or more invoices.
type Result struct {
	IsValid           bool               `json:"is_valid"`
	Errors            []*ValidationError `json:"errors"`
	ErrorCount        int                `json:"error_count"`
	WarningCount      int                `json:"warning_count"`
	InvoicesValidated int                `json:"invoices_validated"`
	InvalidRowNumbers []int              `json:"invalid_rows,omitempty"`
}

// Options tune a Validator.
type Options struct {
	// StopOnFirstError ends a batch at the first error-severity finding.
	StopOnFirstError bool

	// TreatWarningsAsErrors makes any warning invalidate the result.
	TreatWarningsAsErrors bool
}

// Validator applies the local invoice rules.
type Validator struct {
	options Options
}

// NewValidator returns a Validator with the given options.
func NewValidator(options Options) *Validator {
	return &Validator{options: options}
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// ValidateInvoice runs every rule against inv with default options.
func ValidateInvoice(inv types.Invoice) []*ValidationError {
	return NewValidator(Options{}).Invoice(inv, 0)
}

// Messages returns the messages of error-severity findings only, in order.
func Messages(findings []*ValidationError) []string {
	var out []string
	for _, f := range findings {
		if f.Severity == SeverityError {
			out = append(out, f.Message)
		}
	}
	return out
}

// Batch validates each normalized row.
func (v *Validator) Batch(rows []types.RowResult) *Result {
	result := &Result{IsValid: true, InvoicesValidated: len(rows)}

	for _, row := range rows {
		rowInvalid := false
		for _, f := range v.Invoice(row.Invoice, row.RowNumber) {
			result.Errors = append(result.Errors, f)
			if f.Severity == SeverityError {
				result.ErrorCount++
				rowInvalid = true
			} else {
				result.WarningCount++
				if v.options.TreatWarningsAsErrors {
					rowInvalid = true
				}
			}
		}
		if rowInvalid {
			result.IsValid = false
			result.InvalidRowNumbers = append(result.InvalidRowNumbers, row.RowNumber)
			if v.options.StopOnFirstError && result.ErrorCount > 0 {
				return result
			}
		}
	}
	return result
}

// Invoice returns every finding for inv, errors before warnings within each
// level. rowNumber is stamped on the findings.
func (v *Validator) Invoice(inv types.Invoice, rowNumber int) []*ValidationError {
	var findings []*ValidationError
	add := func(severity, field, value, rule, message string) {
		findings = append(findings, &ValidationError{
			Severity:  severity,
			Field:     field,
			Value:     value,
			Rule:      rule,
			Message:   message,
			RowNumber: rowNumber,
		})
	}

	// Header
	required := []struct{ field, label, value string }{
		{"buyerBusinessName", "Buyer Business Name", inv.BuyerBusinessName},
		{"buyerProvince", "Buyer Province", inv.BuyerProvince},
		{"buyerAddress", "Buyer Address", inv.BuyerAddress},
		{"buyerRegistrationType", "Buyer Registration Type", inv.BuyerRegistrationType},
		{"scenarioId", "Scenario ID", inv.ScenarioID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			add(SeverityError, r.field, "", "required", r.label+" is required")
		}
	}

	// Items
	if len(inv.Items) == 0 {
		add(SeverityError, "items", "", "required", "At least one item is required")
	}
	for i, item := range inv.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		itemRequired := []struct{ field, label, value string }{
			{"hsCode", "HS Code", item.HSCode},
			{"productDescription", "Product Description", item.ProductDescription},
			{"rate", "Tax Rate", item.Rate},
			{"uoM", "Unit of Measure", item.UoM},
		}
		for _, r := range itemRequired {
			if strings.TrimSpace(r.value) == "" {
				add(SeverityError, prefix+r.field, "", "required", r.label+" is required")
			}
		}
		if item.ValueSalesExcludingST <= 0 {
			add(SeverityError, prefix+"valueSalesExcludingST", formatAmount(item.ValueSalesExcludingST), "positive", MsgValueNotPositive)
		}
	}

	// Advisory
	if p := strings.TrimSpace(inv.BuyerProvince); p != "" && !types.IsProvince(p) {
		add(SeverityWarning, "buyerProvince", p, "province",
			fmt.Sprintf("Province '%s' is not one of: %s", p, strings.Join(types.Provinces, ", ")))
	}
	if rt := strings.TrimSpace(inv.BuyerRegistrationType); rt != "" && rt != types.Registered && rt != types.Unregistered {
		add(SeverityWarning, "buyerRegistrationType", rt, "registration_type",
			fmt.Sprintf("Registration type should be %s or %s", types.Registered, types.Unregistered))
	}
	if d := strings.TrimSpace(inv.InvoiceDate); d != "" {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			add(SeverityWarning, "invoiceDate", d, "date_format", "Invoice date should be in YYYY-MM-DD format")
		}
	}
	for i, item := range inv.Items {
		want := types.ComputeTotal(item.ValueSalesExcludingST, item.SalesTaxApplicable, item.FurtherTax, item.ExtraTax, item.Discount)
		if math.Abs(want-item.TotalValues) > 0.005 {
			add(SeverityWarning, fmt.Sprintf("items[%d].totalValues", i), formatAmount(item.TotalValues), "total",
				fmt.Sprintf("Total %s does not match computed %s", formatAmount(item.TotalValues), formatAmount(want)))
		}
	}

	return findings
}

// =============================================================================
// REPORTING
// =============================================================================

// FormatErrors renders findings as a numbered list.
func FormatErrors(findings []*ValidationError) string {
	if len(findings) == 0 {
		return "No validation errors."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Validation completed with %d finding(s):\n\n", len(findings))
	for i, f := range findings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.Error())
	}
	return b.String()
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []*ValidationError) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
