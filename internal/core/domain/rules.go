package domain

import "time"

type ConditionType string

const (
	CondVendorNotInGSTR2B      ConditionType = "vendor_not_in_gstr2b"
	CondRecipientNotRegistered ConditionType = "recipient_not_registered"
	CondBlockedCategory        ConditionType = "blocked_category"
	CondAmountMismatch         ConditionType = "amount_mismatch"
	CondPartialExempt          ConditionType = "partial_exempt_supplies"
)

// Condition is a closed tagged variant; dispatch is by Type only, there is
// no embedded expression language.
type Condition struct {
	Type        ConditionType `json:"type"`
	Categories  []string      `json:"categories,omitempty"`
	HSNPrefixes []string      `json:"hsn_prefixes,omitempty"`
	Tolerance   float64       `json:"tolerance,omitempty"`
	ExemptRatio float64       `json:"exempt_ratio,omitempty"`
}

type ActionType string

const (
	ActionBlockITC   ActionType = "block_itc"
	ActionReverseITC ActionType = "reverse_itc"
	ActionPartialITC ActionType = "partial_itc"
)

type RuleLogic struct {
	RuleID    string     `json:"rule_id"`
	Condition Condition  `json:"condition"`
	Action    ActionType `json:"action"`
	// ActionPercent is the percentage of tax blocked/reversed, or the
	// eligible percentage for partial_itc.
	ActionPercent float64 `json:"action_percent"`
	Priority      int     `json:"priority"`
	Active        bool    `json:"active"`
}

type Rule struct {
	ID            string     `json:"rule_id"`
	Name          string     `json:"name"`
	Text          string     `json:"text"`
	Citation      string     `json:"citation"`
	Category      string     `json:"category"`
	Version       string     `json:"version"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Active        bool       `json:"active"`
	Logic         RuleLogic  `json:"logic"`
}

// EffectiveFor reports whether the rule's effective window covers the
// first day of a YYYY-MM period. Unknown periods never match a window.
func (r Rule) EffectiveFor(period string) bool {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return false
	}
	if t.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && t.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// RuleBundle is a versioned rule-set update, applied atomically: the
// version is either fully active or not applied at all.
type RuleBundle struct {
	Version    string    `json:"version"`
	Changelog  string    `json:"changelog"`
	ReleasedAt time.Time `json:"released_at"`
	Rules      []Rule    `json:"rules"`
}

type RuleVersion struct {
	Version    string    `json:"version"`
	Changelog  string    `json:"changelog"`
	ReleasedAt time.Time `json:"released_at"`
	RulesCount int       `json:"rules_count"`
}

// CompositionSemantics fixes whether matching rules within a category are
// exclusive (first match by priority wins) or cumulative (all matches
// apply and their blocked amounts sum). Mixing the two silently is a bug
// source, so the choice is per category and encoded here.
type CompositionSemantics string

const (
	SemanticsCumulative CompositionSemantics = "cumulative"
	SemanticsExclusive  CompositionSemantics = "exclusive"
)

// CategorySemantics returns the composition semantics for a rule category.
// itc rules stack (a vendor can be missing from GSTR-2B and the category
// blocked at once); eligibility rules are a decision, first match wins.
func CategorySemantics(category string) CompositionSemantics {
	switch category {
	case "eligibility":
		return SemanticsExclusive
	default:
		return SemanticsCumulative
	}
}

type EvaluationState string

const (
	EvalPending  EvaluationState = "pending"
	EvalEligible EvaluationState = "eligible"
	EvalBlocked  EvaluationState = "blocked"
	EvalPartial  EvaluationState = "partially_allowed"
)

type AppliedRule struct {
	RuleID        string     `json:"rule_id"`
	Name          string     `json:"name"`
	Citation      string     `json:"citation"`
	Action        ActionType `json:"action"`
	BlockedAmount float64    `json:"blocked_amount"`
}

// EvaluationResult is derived and ephemeral; it is persisted only when
// exported inside a working paper.
type EvaluationResult struct {
	InvoiceNumber  string          `json:"invoice_number"`
	VendorGSTIN    string          `json:"vendor_gstin"`
	State          EvaluationState `json:"state"`
	TaxableValue   float64         `json:"taxable_value"`
	TotalTax       float64         `json:"total_tax"`
	EligibleAmount float64         `json:"eligible_amount"`
	BlockedAmount  float64         `json:"blocked_amount"`
	RulesApplied   []AppliedRule   `json:"rules_applied,omitempty"`
	Reason         string          `json:"reason"`
	Recommendation string          `json:"recommendation,omitempty"`
}

type EvaluationAggregate struct {
	TotalInvoices int     `json:"total_invoices"`
	EligibleCount int     `json:"eligible_count"`
	BlockedCount  int     `json:"blocked_count"`
	PendingCount  int     `json:"pending_count"`
	TotalClaimed  float64 `json:"total_claimed"`
	TotalAllowed  float64 `json:"total_allowed"`
	TotalBlocked  float64 `json:"total_blocked"`
	AllowedPct    float64 `json:"allowed_pct"`
}

type BatchEvaluation struct {
	Results   []EvaluationResult  `json:"results"`
	Aggregate EvaluationAggregate `json:"aggregate"`
}
