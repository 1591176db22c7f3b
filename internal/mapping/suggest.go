package mapping

import (
	"strings"

	"github.com/schollz/closestmatch"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// suggestBags are the substring sizes closestmatch indexes headers with.
var suggestBags = []int{2, 3}

// Suggestion proposes a header for a field that detection left unmapped.
type Suggestion struct {
	Field   types.CanonicalField `json:"field"`
	Header  string               `json:"header"`
	Matched string               `json:"matched_synonym"`
}

// Suggest looks for a plausible header for every unmapped field using fuzzy
// bag-of-substrings matching. The result is advisory: it is never merged
// into the mapping.
func Suggest(headers []string, m types.ColumnMapping) []Suggestion {
	original := make(map[string]string, len(headers))
	var keys []string
	for _, h := range headers {
		n := normalize(h)
		if n == "" {
			continue
		}
		if _, seen := original[n]; !seen {
			original[n] = h
			keys = append(keys, n)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	cm := closestmatch.New(keys, suggestBags)
	var out []Suggestion
	for _, field := range types.AllFields() {
		if _, ok := m.Header(field); ok {
			continue
		}
		queries := append([]string{strings.ReplaceAll(string(field), "_", " ")}, Synonyms[field]...)
		for _, q := range queries {
			if match := cm.Closest(q); match != "" {
				out = append(out, Suggestion{Field: field, Header: original[match], Matched: q})
				break
			}
		}
	}
	return out
}
