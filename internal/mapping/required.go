package mapping

import (
	"strings"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// RequiredFields are the fields a spreadsheet is expected to carry for a
// complete invoice. Missing ones are reported but do not block processing.
var RequiredFields = []types.CanonicalField{
	types.FieldBuyerName,
	types.FieldHSCode,
	types.FieldProductDesc,
	types.FieldValueExclST,
}

// ProcessingRequired must be mapped before a batch is normalized at all.
var ProcessingRequired = []types.CanonicalField{
	types.FieldBuyerName,
	types.FieldValueExclST,
}

// Missing returns the fields from want that m leaves unmapped, in order.
func Missing(m types.ColumnMapping, want []types.CanonicalField) []types.CanonicalField {
	var missing []types.CanonicalField
	for _, f := range want {
		if _, ok := m.Header(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Labels renders fields with CanonicalField.Label, joined by ", ".
func Labels(fields []types.CanonicalField) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Label()
	}
	return strings.Join(parts, ", ")
}
