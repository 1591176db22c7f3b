// =============================================================================
// FBR Invoicer - Transformation Engine
// =============================================================================
//
// Mapping profiles can rewrite the raw value of a canonical field before the
// row is normalized, e.g. translating "KHI" into "Sindh" or stripping dashes
// from an NTN.
//
// TRANSFORMATION TYPES:
//   trim, uppercase, lowercase, prepend_string, append_string, replace,
//   regex_replace, lookup, lookup_with_default, if_empty_use_default,
//   extract_digits, remove_leading_zeros, normalize_whitespace
//
// Only mapped fields present in the row are transformed; unmapped fields keep
// their normalizer defaults.
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

var (
	digitsRe     = regexp.MustCompile(`\d+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies a profile's transformation rules to raw rows.
type Transformer struct {
	rules map[types.CanonicalField][]config.TransformationAction
	regex map[string]*regexp.Regexp
}

// NewTransformer compiles rules. Unknown fields, unknown action types and
// invalid patterns are rejected here rather than per row.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{
		rules: make(map[types.CanonicalField][]config.TransformationAction),
		regex: make(map[string]*regexp.Regexp),
	}
	for _, rule := range rules {
		field, ok := types.ParseField(rule.Field)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", rule.Field)
		}
		for _, action := range rule.Actions {
			if !knownAction(action.Type) {
				return nil, fmt.Errorf("field %s: unknown transformation %q", rule.Field, action.Type)
			}
			if action.Type == "regex_replace" && action.Find != "" {
				re, err := regexp.Compile(action.Find)
				if err != nil {
					return nil, fmt.Errorf("field %s: invalid regex pattern: %w", rule.Field, err)
				}
				t.regex[action.Find] = re
			}
		}
		t.rules[field] = append(t.rules[field], rule.Actions...)
	}
	return t, nil
}

// Empty reports whether there is nothing to apply.
func (t *Transformer) Empty() bool {
	return t == nil || len(t.rules) == 0
}

// Apply returns a copy of row with every mapped, present field transformed.
// The input row is not modified.
func (t *Transformer) Apply(row map[string]string, m types.ColumnMapping) map[string]string {
	if t.Empty() {
		return row
	}
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}
	for field, actions := range t.rules {
		header, ok := m.Header(field)
		if !ok {
			continue
		}
		value, ok := out[header]
		if !ok {
			continue
		}
		for _, action := range actions {
			value = t.applyAction(value, action)
		}
		out[header] = value
	}
	return out
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

func (t *Transformer) applyAction(value string, action config.TransformationAction) string {
	switch action.Type {

	// String manipulations
	case "trim":
		return strings.TrimSpace(value)
	case "uppercase":
		return strings.ToUpper(value)
	case "lowercase":
		return strings.ToLower(value)
	case "prepend_string":
		return action.Value + value
	case "append_string":
		return value + action.Value
	case "replace":
		if action.Find == "" {
			return value
		}
		return strings.ReplaceAll(value, action.Find, action.Value)
	case "regex_replace":
		re, ok := t.regex[action.Find]
		if !ok {
			return value
		}
		return re.ReplaceAllString(value, action.Value)

	// Lookup tables. Keys are matched after trimming, case-insensitively.
	case "lookup":
		if replacement, ok := lookup(action.LookupTable, value); ok {
			return replacement
		}
		return value
	case "lookup_with_default":
		if replacement, ok := lookup(action.LookupTable, value); ok {
			return replacement
		}
		return action.Value

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value
		}
		return value

	// Cleanup
	case "extract_digits":
		return strings.Join(digitsRe.FindAllString(value, -1), "")
	case "remove_leading_zeros":
		result := strings.TrimLeft(value, "0")
		if result == "" && value != "" {
			return "0"
		}
		return result
	case "normalize_whitespace":
		return strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))
	}
	return value
}

func knownAction(kind string) bool {
	switch kind {
	case "trim", "uppercase", "lowercase", "prepend_string", "append_string",
		"replace", "regex_replace", "lookup", "lookup_with_default",
		"if_empty_use_default", "extract_digits", "remove_leading_zeros",
		"normalize_whitespace":
		return true
	}
	return false
}

func lookup(table map[string]string, value string) (string, bool) {
	if v, ok := table[value]; ok {
		return v, true
	}
	key := strings.TrimSpace(value)
	for k, v := range table {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return v, true
		}
	}
	return "", false
}
