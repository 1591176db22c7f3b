package mapping

import "github.com/ginjaninja78/fbr-invoicer/internal/types"

// Synonyms lists, per canonical field, the header spellings recognised when
// auto-detecting a spreadsheet layout. Order matters only for reporting.
var Synonyms = map[types.CanonicalField][]string{
	// Buyer
	types.FieldBuyerRegNo: {
		"registration no", "buyer registration no", "buyerntnccnic", "buyer ntn", "buyer cnic",
		"ntn", "cnic", "registration number", "reg no", "buyer reg no",
	},
	types.FieldBuyerName: {
		"name", "buyer name", "buyer business name", "business name", "buyerbusinessname",
		"customer name", "client name", "party name",
	},
	types.FieldBuyerType: {
		"type", "buyer type", "registration type", "buyer registration type",
		"registered", "unregistered", "reg type",
	},
	types.FieldBuyerProvince: {
		"sale origination province", "buyer province", "province", "buyerprovince",
		"origination province", "buyer state", "state",
	},
	types.FieldBuyerAddress: {
		"destination of supply", "buyer address", "address", "buyeraddress",
		"destination", "supply destination", "delivery address",
	},

	// Invoice
	types.FieldInvoiceDate: {
		"document date", "invoice date", "date", "invoicedate",
		"doc date", "transaction date", "sale date",
	},
	types.FieldInvoiceRef: {
		"document number", "invoice reference no", "invoice ref no", "invoice number",
		"doc number", "ref no", "reference", "invoicerefno",
	},
	types.FieldHSCode: {
		"hs code description", "hs code", "hscode", "commodity code",
		"product code", "item code",
	},
	types.FieldProductDesc: {
		"product description", "description", "item description", "productdescription",
		"product name", "item name", "goods description",
	},

	// Item values
	types.FieldQuantity: {
		"quantity", "qty", "amount", "units", "pieces", "nos",
	},
	types.FieldUoM: {
		"uom", "unit of measure", "unit", "measure", "units",
		"numbers, pieces, units", "kg", "pcs", "pieces",
	},
	types.FieldRate: {
		"rate", "tax rate", "st rate", "sales tax rate", "%",
		"percentage", "tax percentage",
	},
	types.FieldValueExclST: {
		"value of sales excluding sales tax", "value excluding sales tax",
		"value excl st", "base value", "taxable value", "net value",
		"valuesalesexcludingst", "amount before tax",
	},
	types.FieldSalesTax: {
		"sales tax/fed in st mode", "sales tax", "st amount", "tax amount",
		"salestaxapplicable", "sales tax applicable", "tax",
	},

	// Optional
	types.FieldFurtherTax: {
		"further tax", "additional tax", "extra tax", "other tax",
	},
	types.FieldDiscount: {
		"discount", "rebate", "deduction", "less",
	},
	types.FieldSaleType: {
		"sale type", "transaction type", "saletype", "type of sale",
		"3rd schedule goods", "standard", "exempt",
	},
}
