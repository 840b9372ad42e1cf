package domain

type SummaryKind string

const (
	SummarySalesTotal    SummaryKind = "sales_total"
	SummaryPurchaseTotal SummaryKind = "purchase_total"
	SummaryGSTLiability  SummaryKind = "gst_liability"
	SummaryITC           SummaryKind = "itc_summary"
	SummaryVendorCount   SummaryKind = "vendor_count"
)

var summaryKinds = map[SummaryKind]bool{
	SummarySalesTotal:    true,
	SummaryPurchaseTotal: true,
	SummaryGSTLiability:  true,
	SummaryITC:           true,
	SummaryVendorCount:   true,
}

func ValidSummaryKind(kind string) bool {
	return summaryKinds[SummaryKind(kind)]
}

type SummaryQuery struct {
	Kind     SummaryKind
	Period   string
	Category string
}

// SummaryAggregate is the only shape a summary tool may return: totals,
// never per-record detail.
type SummaryAggregate struct {
	Kind         SummaryKind `json:"kind"`
	Period       string      `json:"period"`
	Count        int         `json:"count"`
	TotalTaxable float64     `json:"total_taxable"`
	TotalTax     float64     `json:"total_tax"`
	TotalAmount  float64     `json:"total_amount"`
	VendorCount  int         `json:"vendor_count,omitempty"`
}
