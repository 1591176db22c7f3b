package converter

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// SafeFloat is the single numeric coercion used for every spreadsheet and
// form amount. Empty, NaN or infinite input yields def. Otherwise thousands separators
// and percent signs are stripped and the rest is parsed; anything that still
// does not parse also yields def. It never fails.
func SafeFloat(raw string, def float64) float64 {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return def
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// FormatRate renders a tax rate the way the FBR API expects it, e.g. "18%".
// A value that already ends in "%" is passed through. Otherwise any stray
// percent signs and spaces are removed and the number is rendered in its
// shortest form followed by "%". Unparseable input gives DefaultRate.
func FormatRate(raw string) string {
	v := strings.TrimSpace(raw)
	if strings.HasSuffix(v, "%") {
		return v
	}
	clean := strings.ReplaceAll(strings.ReplaceAll(v, "%", ""), " ", "")
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return types.DefaultRate
	}
	return d.String() + "%"
}
