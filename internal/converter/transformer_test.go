package converter

import (
	"testing"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

func TestTransformer_Apply(t *testing.T) {
	tr, err := NewTransformer([]config.TransformationRule{
		{Field: "buyer_province", Actions: []config.TransformationAction{
			{Type: "lookup", LookupTable: map[string]string{"KHI": "Sindh", "LHR": "Punjab"}},
		}},
		{Field: "buyer_reg_no", Actions: []config.TransformationAction{
			{Type: "extract_digits"},
			{Type: "remove_leading_zeros"},
		}},
		{Field: "buyer_name", Actions: []config.TransformationAction{
			{Type: "normalize_whitespace"},
			{Type: "uppercase"},
		}},
		{Field: "hs_code", Actions: []config.TransformationAction{
			{Type: "regex_replace", Find: `[^0-9.]`, Value: ""},
		}},
		{Field: "uom", Actions: []config.TransformationAction{
			{Type: "if_empty_use_default", Value: "KG"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := types.ColumnMapping{
		types.FieldBuyerProvince: "City",
		types.FieldBuyerRegNo:    "NTN",
		types.FieldBuyerName:     "Customer",
		types.FieldHSCode:        "HS",
		types.FieldUoM:           "Unit",
	}
	row := map[string]string{
		"City":     " khi ",
		"NTN":      "00-123-45",
		"Customer": "  acme   traders ",
		"HS":       "HS 0101.21",
		"Unit":     "",
		"Other":    "untouched",
	}

	out := tr.Apply(row, m)

	want := map[string]string{
		"City":     "Sindh",
		"NTN":      "12345",
		"Customer": "ACME TRADERS",
		"HS":       "0101.21",
		"Unit":     "KG",
		"Other":    "untouched",
	}
	for k, v := range want {
		if out[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, out[k])
		}
	}
	if row["City"] != " khi " {
		t.Errorf("input row was modified: %q", row["City"])
	}
}

func TestTransformer_LookupWithDefault(t *testing.T) {
	tr, err := NewTransformer([]config.TransformationRule{
		{Field: "buyer_type", Actions: []config.TransformationAction{
			{Type: "lookup_with_default", Value: "Unregistered", LookupTable: map[string]string{"R": "Registered"}},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := types.ColumnMapping{types.FieldBuyerType: "Status"}

	if got := tr.Apply(map[string]string{"Status": "r"}, m)["Status"]; got != "Registered" {
		t.Errorf("expected Registered, got %q", got)
	}
	if got := tr.Apply(map[string]string{"Status": "X"}, m)["Status"]; got != "Unregistered" {
		t.Errorf("expected Unregistered, got %q", got)
	}
}

func TestTransformer_UnmappedFieldIgnored(t *testing.T) {
	tr, err := NewTransformer([]config.TransformationRule{
		{Field: "uom", Actions: []config.TransformationAction{{Type: "uppercase"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := map[string]string{"Unit": "kg"}
	if got := tr.Apply(row, types.ColumnMapping{})["Unit"]; got != "kg" {
		t.Fatalf("expected unmapped column untouched, got %q", got)
	}
}

func TestNewTransformer_Rejects(t *testing.T) {
	cases := map[string][]config.TransformationRule{
		"unknown field":  {{Field: "colour", Actions: []config.TransformationAction{{Type: "trim"}}}},
		"unknown action": {{Field: "uom", Actions: []config.TransformationAction{{Type: "explode"}}}},
		"bad regex":      {{Field: "uom", Actions: []config.TransformationAction{{Type: "regex_replace", Find: "("}}}},
	}
	for name, rules := range cases {
		if _, err := NewTransformer(rules); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestTransformer_NilIsEmpty(t *testing.T) {
	var tr *Transformer
	row := map[string]string{"a": "b"}
	if !tr.Empty() {
		t.Fatal("expected nil transformer to be empty")
	}
	if got := tr.Apply(row, types.ColumnMapping{}); got["a"] != "b" {
		t.Fatalf("expected row returned unchanged, got %v", got)
	}
}
