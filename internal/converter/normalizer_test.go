package converter

import (
	"errors"
	"testing"
	"time"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

var testToday = time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)

func testSeller() types.SellerProfile {
	return types.SellerProfile{
		ID:           1,
		NTNCNIC:      "1234567",
		BusinessName: "Seller Traders",
		Province:     "Punjab",
		Address:      "Mall Road, Lahore",
		BearerToken:  "secret",
	}
}

func fullMapping() types.ColumnMapping {
	return types.ColumnMapping{
		types.FieldBuyerRegNo:    "NTN",
		types.FieldBuyerName:     "Buyer",
		types.FieldBuyerType:     "Type",
		types.FieldBuyerProvince: "Province",
		types.FieldBuyerAddress:  "Address",
		types.FieldInvoiceDate:   "Date",
		types.FieldInvoiceRef:    "Ref",
		types.FieldHSCode:        "HS",
		types.FieldProductDesc:   "Description",
		types.FieldQuantity:      "Qty",
		types.FieldUoM:           "UoM",
		types.FieldRate:          "Rate",
		types.FieldValueExclST:   "Value",
		types.FieldSalesTax:      "ST",
		types.FieldFurtherTax:    "FT",
		types.FieldDiscount:      "Discount",
		types.FieldSaleType:      "Sale Type",
	}
}

func fullRow() map[string]string {
	return map[string]string{
		"NTN":         "7654321",
		"Buyer":       " Acme Corp ",
		"Type":        "Registered",
		"Province":    "Punjab",
		"Address":     "Gulberg, Lahore",
		"Date":        "2024-03-15",
		"Ref":         "INV-77",
		"HS":          "0101.2100",
		"Description": "Horses",
		"Qty":         "2",
		"UoM":         "NOS",
		"Rate":        "17",
		"Value":       "1,000",
		"ST":          "170",
		"FT":          "30",
		"Discount":    "50",
		"Sale Type":   "Goods at standard rate (default)",
	}
}

func TestNormalizeRow_FullRow(t *testing.T) {
	res, err := NormalizeRow(fullRow(), fullMapping(), testSeller(), 0, testToday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := res.Invoice

	if res.RowNumber != 1 {
		t.Errorf("expected row number 1, got %d", res.RowNumber)
	}
	if inv.BuyerBusinessName != "Acme Corp" || res.BuyerName != "Acme Corp" {
		t.Errorf("expected trimmed buyer name, got %q / %q", inv.BuyerBusinessName, res.BuyerName)
	}
	if inv.BuyerNTNCNIC != "7654321" || inv.BuyerRegistrationType != "Registered" {
		t.Errorf("unexpected buyer identity %q %q", inv.BuyerNTNCNIC, inv.BuyerRegistrationType)
	}
	if inv.InvoiceDate != "2024-03-15" {
		t.Errorf("expected 2024-03-15, got %s", inv.InvoiceDate)
	}
	if inv.InvoiceRefNo != "INV-77" {
		t.Errorf("expected INV-77, got %s", inv.InvoiceRefNo)
	}
	if inv.InvoiceType != types.InvoiceTypeSale || inv.ScenarioID != types.DefaultScenarioID {
		t.Errorf("unexpected invoice type/scenario %q %q", inv.InvoiceType, inv.ScenarioID)
	}
	if inv.SellerNTNCNIC != "1234567" || inv.SellerBusinessName != "Seller Traders" {
		t.Errorf("seller fields not applied: %+v", inv)
	}

	if len(inv.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(inv.Items))
	}
	item := inv.Items[0]
	if item.Rate != "17%" {
		t.Errorf("expected rate 17%%, got %s", item.Rate)
	}
	if item.Quantity != 2 || item.UoM != "NOS" {
		t.Errorf("unexpected quantity/uom %v %s", item.Quantity, item.UoM)
	}
	if item.ValueSalesExcludingST != 1000 {
		t.Errorf("expected value 1000, got %v", item.ValueSalesExcludingST)
	}
	// 1000 + 170 + 30 + 0 - 50
	if item.TotalValues != 1150 || res.Amount != 1150 {
		t.Errorf("expected total 1150, got %v / %v", item.TotalValues, res.Amount)
	}
}

func TestNormalizeRow_Defaults(t *testing.T) {
	m := types.ColumnMapping{
		types.FieldBuyerName:   "Buyer",
		types.FieldBuyerType:   "Type",
		types.FieldValueExclST: "Value",
	}
	row := map[string]string{"Buyer": "Acme", "Type": "Registered", "Value": "500"}

	res, err := NormalizeRow(row, m, testSeller(), 2, testToday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := res.Invoice
	item := inv.Items[0]

	checks := []struct {
		name, got, want string
	}{
		{"province", inv.BuyerProvince, DefaultBuyerProvince},
		{"address", inv.BuyerAddress, DefaultBuyerAddress},
		{"date", inv.InvoiceDate, "2024-05-01"},
		{"ref", inv.InvoiceRefNo, "REF-3"},
		{"reg no", inv.BuyerNTNCNIC, ""},
		{"hs code", item.HSCode, ""},
		{"description", item.ProductDescription, DefaultProductDesc},
		{"uom", item.UoM, DefaultUoM},
		{"rate", item.Rate, "18%"},
		{"sale type", item.SaleType, ""},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %q, got %q", c.name, c.want, c.got)
		}
	}
	if item.Quantity != 1 {
		t.Errorf("expected default quantity 1, got %v", item.Quantity)
	}
	if item.TotalValues != 500 {
		t.Errorf("expected total 500, got %v", item.TotalValues)
	}
}

func TestNormalizeRow_MappedHeaderMissingFromRow(t *testing.T) {
	m := fullMapping()
	row := map[string]string{"Buyer": "Acme", "Type": "Registered", "Value": "10"}

	res, err := NormalizeRow(row, m, testSeller(), 0, testToday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Invoice.BuyerProvince != DefaultBuyerProvince {
		t.Errorf("expected default province, got %q", res.Invoice.BuyerProvince)
	}
	if res.Invoice.Items[0].UoM != DefaultUoM {
		t.Errorf("expected default uom, got %q", res.Invoice.Items[0].UoM)
	}
}

func TestNormalizeRow_EmptyCellsUseDefaults(t *testing.T) {
	row := fullRow()
	row["UoM"] = ""
	row["Ref"] = "  "
	row["Type"] = ""
	row["Province"] = ""
	row["Address"] = ""
	row["Rate"] = ""

	res, err := NormalizeRow(row, fullMapping(), testSeller(), 5, testToday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := res.Invoice
	item := inv.Items[0]

	checks := []struct {
		name, got, want string
	}{
		{"uom", item.UoM, DefaultUoM},
		{"ref", inv.InvoiceRefNo, "REF-6"},
		{"registration type", inv.BuyerRegistrationType, types.Unregistered},
		{"reg no", inv.BuyerNTNCNIC, types.UnregisteredRegNo},
		{"buyer name", inv.BuyerBusinessName, types.UnregisteredName},
		{"province", inv.BuyerProvince, DefaultBuyerProvince},
		{"address", inv.BuyerAddress, DefaultBuyerAddress},
		{"rate", item.Rate, "18%"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %q, got %q", c.name, c.want, c.got)
		}
	}
}

func TestNormalizeRow_ValueNotPositive(t *testing.T) {
	row := fullRow()
	row["Value"] = "0"

	res, err := NormalizeRow(row, fullMapping(), testSeller(), 2, testToday)
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if err == nil || err.Error() != "Row 3: Value excluding ST must be greater than 0" {
		t.Fatalf("unexpected error: %v", err)
	}
	var rowErr *RowError
	if !errors.As(err, &rowErr) || rowErr.Row != 3 {
		t.Fatalf("expected *RowError for row 3, got %#v", err)
	}
}

func TestNormalizeRow_ValueCheckedBeforeName(t *testing.T) {
	row := fullRow()
	row["Value"] = "abc"
	row["Buyer"] = ""

	_, err := NormalizeRow(row, fullMapping(), testSeller(), 0, testToday)
	if err == nil || err.Error() != "Row 1: "+ReasonValueNotPositive {
		t.Fatalf("expected value failure first, got %v", err)
	}
}

func TestNormalizeRow_TotalOverflow(t *testing.T) {
	row := fullRow()
	row["Value"] = "1e308"
	row["ST"] = "1e308"

	res, err := NormalizeRow(row, fullMapping(), testSeller(), 1, testToday)
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if err == nil || err.Error() != "Row 2: "+ReasonTotalOutOfRange {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeRow_BuyerNameMissing(t *testing.T) {
	row := fullRow()
	row["Buyer"] = "   "

	_, err := NormalizeRow(row, fullMapping(), testSeller(), 4, testToday)
	if err == nil || err.Error() != "Row 5: Buyer name is required" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeRow_UnregisteredBuyer(t *testing.T) {
	row := fullRow()
	row["Type"] = "unregistered"
	row["Buyer"] = "Acme"

	res, err := NormalizeRow(row, fullMapping(), testSeller(), 0, testToday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := res.Invoice
	if inv.BuyerNTNCNIC != "9999999" || inv.BuyerBusinessName != "Un-Registered" || inv.BuyerRegistrationType != "Unregistered" {
		t.Fatalf("expected canonical unregistered buyer, got %q %q %q",
			inv.BuyerNTNCNIC, inv.BuyerBusinessName, inv.BuyerRegistrationType)
	}
	if res.BuyerName != "Un-Registered" {
		t.Errorf("expected result buyer name to mirror invoice, got %q", res.BuyerName)
	}
}

func TestNormalizeRow_Deterministic(t *testing.T) {
	a, errA := NormalizeRow(fullRow(), fullMapping(), testSeller(), 5, testToday)
	b, errB := NormalizeRow(fullRow(), fullMapping(), testSeller(), 5, testToday)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v %v", errA, errB)
	}
	if a.Invoice.InvoiceRefNo != b.Invoice.InvoiceRefNo || a.Amount != b.Amount || a.Invoice.InvoiceDate != b.Invoice.InvoiceDate {
		t.Fatalf("expected identical results, got %+v and %+v", a, b)
	}
}

func TestApplyBuyerRule(t *testing.T) {
	cases := []struct {
		name                  string
		regNo, buyer, regType string
		wantUnregistered      bool
	}{
		{"type", "123", "Acme", "UnRegistered", true},
		{"name", "123", "Un-Registered Person", "Registered", true},
		{"sentinel", "9999999", "Acme", "Registered", true},
		{"registered", "123", "Acme", "Registered", false},
	}
	for _, c := range cases {
		r, n, ty := ApplyBuyerRule(c.regNo, c.buyer, c.regType)
		got := r == types.UnregisteredRegNo && n == types.UnregisteredName && ty == types.Unregistered
		if got != c.wantUnregistered {
			t.Errorf("%s: got (%q, %q, %q)", c.name, r, n, ty)
		}

		r2, n2, ty2 := ApplyBuyerRule(r, n, ty)
		if r2 != r || n2 != n || ty2 != ty {
			t.Errorf("%s: rule not idempotent: (%q, %q, %q) -> (%q, %q, %q)", c.name, r, n, ty, r2, n2, ty2)
		}
	}
}
