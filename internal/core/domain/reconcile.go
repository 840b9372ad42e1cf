package domain

import "time"

// Dataset names for parsed tabular records.
const (
	DatasetBooks  = "books"
	DatasetGSTR2B = "gstr2b"
)

// InvoiceRecord is a normalized purchase-register or GSTR-2B line. Both
// reconciliation sides share the shape; the source dataset distinguishes
// them.
type InvoiceRecord struct {
	InvoiceNumber  string    `json:"invoice_number"`
	VendorGSTIN    string    `json:"vendor_gstin"`
	RecipientGSTIN string    `json:"recipient_gstin,omitempty"`
	InvoiceDate    time.Time `json:"invoice_date"`
	Period         string    `json:"period"`
	Category       string    `json:"category,omitempty"`
	HSNCode        string    `json:"hsn_code,omitempty"`
	TaxableValue   float64   `json:"taxable_value"`
	TaxAmount      float64   `json:"tax_amount"`
}

func (r InvoiceRecord) Total() float64 {
	return r.TaxableValue + r.TaxAmount
}

// GSTR2BStatement is the external dataset rules cross-reference: the set
// of vendor GSTINs the authority reports for a period plus its lines.
type GSTR2BStatement struct {
	Period  string          `json:"period"`
	Vendors []string        `json:"vendors"`
	Lines   []InvoiceRecord `json:"lines"`
}

func (s GSTR2BStatement) HasVendor(gstin string) bool {
	for _, v := range s.Vendors {
		if v == gstin {
			return true
		}
	}
	return false
}

type MatchKind string

const (
	MatchExact          MatchKind = "exact"
	MatchFuzzy          MatchKind = "fuzzy"
	MatchMismatched     MatchKind = "mismatched"
	MatchUnmatchedLeft  MatchKind = "unmatched_left"
	MatchUnmatchedRight MatchKind = "unmatched_right"
)

type ReconciliationMatch struct {
	Left        *InvoiceRecord `json:"left,omitempty"`
	Right       *InvoiceRecord `json:"right,omitempty"`
	Kind        MatchKind      `json:"kind"`
	Similarity  float64        `json:"similarity,omitempty"`
	AmountDelta float64        `json:"amount_delta"`
}

type ActionItem struct {
	Type           string `json:"type"`
	InvoiceNumber  string `json:"invoice_number"`
	VendorGSTIN    string `json:"vendor_gstin,omitempty"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// ReconciliationReport partitions both inputs: every left record lands in
// exactly one of matched/mismatched/unmatched-left, likewise for right.
type ReconciliationReport struct {
	Period         string                `json:"period"`
	SourceLeft     string                `json:"source_left"`
	SourceRight    string                `json:"source_right"`
	Matched        []ReconciliationMatch `json:"matched"`
	Mismatches     []ReconciliationMatch `json:"mismatches"`
	UnmatchedLeft  []InvoiceRecord       `json:"unmatched_left"`
	UnmatchedRight []InvoiceRecord       `json:"unmatched_right"`
	ActionItems    []ActionItem          `json:"action_items,omitempty"`
	// Partial marks a run that hit its deadline before classifying every
	// record; the sets above are still a valid partition of what was seen.
	Partial     bool      `json:"partial"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (r ReconciliationReport) MatchedCount() int { return len(r.Matched) }

func (r ReconciliationReport) TotalAmountDelta() float64 {
	var sum float64
	for _, m := range r.Mismatches {
		sum += m.AmountDelta
	}
	return sum
}
