// Package mapping infers which spreadsheet header holds each canonical
// invoice field.
//
// Every field is matched on its own. Nothing stops two fields from claiming
// the same header, and no global assignment step runs; callers only read the
// fields they need, so a header shared by "quantity" and "uom" is harmless.
package mapping

import (
	"strings"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

const (
	// ExactScore is awarded to a case-insensitive exact header match.
	ExactScore = 100

	// MinScore is the confidence threshold below which a field stays unmapped.
	MinScore = 5

	tokenWeight  = 10
	prefixBonus  = 5
	prefixLength = 5
)

// Score rates how well header matches synonym. Both are compared lowercased
// and trimmed. Zero means no relation.
func Score(header, synonym string) int {
	h := normalize(header)
	s := normalize(synonym)
	if h == "" || s == "" {
		return 0
	}
	if h == s {
		return ExactScore
	}
	if !strings.Contains(h, s) && !strings.Contains(s, h) {
		return 0
	}

	score := sharedTokens(h, s) * tokenWeight
	if strings.HasPrefix(h, firstRunes(s, prefixLength)) || strings.HasPrefix(s, firstRunes(h, prefixLength)) {
		score += prefixBonus
	}
	return score
}

// DetectMapping binds each canonical field to the best scoring header.
//
// For each field, every header is scored against every synonym of that
// field. The first exact match in header order wins outright. Otherwise the
// strictly highest partial score wins, and ties keep the earlier header.
// Fields whose best score is below MinScore are left out of the result.
func DetectMapping(headers []string) types.ColumnMapping {
	return detect(headers, Synonyms)
}

func detect(headers []string, synonyms map[types.CanonicalField][]string) types.ColumnMapping {
	mapping := make(types.ColumnMapping)
	if len(headers) == 0 {
		return mapping
	}

	for _, field := range types.AllFields() {
		candidates := synonyms[field]
		best, bestScore := "", 0

	scan:
		for _, header := range headers {
			if normalize(header) == "" {
				continue
			}
			for _, synonym := range candidates {
				score := Score(header, synonym)
				if score == ExactScore {
					best, bestScore = header, score
					break scan
				}
				if score > bestScore {
					best, bestScore = header, score
				}
			}
		}

		if best != "" && bestScore >= MinScore {
			mapping[field] = best
		}
	}
	return mapping
}

// DetectWithOverrides runs DetectMapping and then applies explicit bindings.
// An override is honoured only when its header is present in headers
// (compared case-insensitively); the header's original spelling is used.
func DetectWithOverrides(headers []string, overrides map[types.CanonicalField]string) types.ColumnMapping {
	mapping := DetectMapping(headers)
	for field, want := range overrides {
		for _, h := range headers {
			if normalize(h) == normalize(want) && normalize(h) != "" {
				mapping[field] = h
				break
			}
		}
	}
	return mapping
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sharedTokens(a, b string) int {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(a) {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range strings.Fields(b) {
		if _, ok := set[t]; ok {
			n++
			delete(set, t)
		}
	}
	return n
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
