package firewall

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

// Args is a decoded JSON parameter map, already schema-validated when a
// handler sees it.
type Args map[string]any

func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a Args) Int(key string, fallback int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// Handler executes one tool call on behalf of a workspace owner.
type Handler func(ctx context.Context, ownerID string, args Args) (any, error)

// Tool is one row of the gateway's declarative table: everything the
// firewall needs to admit, execute and shape a call.
type Tool struct {
	Name        string
	Description string
	// Schema validates the raw parameter object. additionalProperties is
	// false on every tool: unknown keys are violations, not noise.
	Schema *openapi3.Schema
	// Fields allow-lists result object keys. Empty means the handler's
	// result is already aggregate-shaped and passes through whole.
	Fields []string
	// PreviewCap truncates result strings; zero picks the default.
	PreviewCap int
	Handler    Handler
}

// Services are the inbound ports the tool table binds to. The reasoning
// engine never sees these directly.
type Services struct {
	Search     ports.SearchService
	Records    ports.RecordStore
	Evaluator  ports.RuleEvaluator
	Papers     ports.WorkingPaperStore
	Compliance ports.ComplianceService
}

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

var periodPattern = `^\d{4}-(0[1-9]|1[0-2])$`

// DefaultTools builds the complete tool table. This is the entire surface
// the reasoning engine can reach; anything not here does not exist for it.
func DefaultTools(svc Services) []Tool {
	return []Tool{
		{
			Name:        "search_documents",
			Description: "Hybrid semantic and keyword search over indexed document chunks. Returns text previews with relevance scores.",
			Schema:      searchDocumentsSchema(),
			Fields:      []string{"count", "results", "chunk_id", "document_id", "type", "category", "period", "text", "score"},
			Handler:     searchDocumentsHandler(svc.Search),
		},
		{
			Name:        "get_summary",
			Description: "Aggregate totals over parsed invoice records: sales_total, purchase_total, gst_liability, itc_summary or vendor_count. Never returns per-record rows.",
			Schema:      getSummarySchema(),
			Handler:     getSummaryHandler(svc.Records),
		},
		{
			Name:        "get_record",
			Description: "Look up a single parsed invoice record by invoice number.",
			Schema:      getRecordSchema(),
			Fields:      []string{"invoice_number", "vendor_gstin", "invoice_date", "period", "category", "hsn_code", "taxable_value", "tax_amount"},
			Handler:     getRecordHandler(svc.Records),
		},
		{
			Name:        "reconcile",
			Description: "Run a books vs GSTR-2B reconciliation for one period. Returns match counts, amount deltas and action items, never full record sets.",
			Schema:      reconcileSchema(),
			Handler:     reconcileHandler(svc.Compliance),
		},
		{
			Name:        "get_reconciliation",
			Description: "Summary of a stored GSTR-2B reconciliation working paper: match counts, amount deltas and action items.",
			Schema:      getReconciliationSchema(),
			Handler:     getReconciliationHandler(svc.Papers),
		},
		{
			Name:        "explain_rule",
			Description: "Explain a compliance rule in plain language, optionally checking whether a described scenario would trigger it.",
			Schema:      explainRuleSchema(),
			Handler:     explainRuleHandler(svc.Evaluator),
		},
	}
}

func searchDocumentsSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("query", openapi3.NewStringSchema().WithMinLength(1).WithMaxLength(512)).
		WithProperty("limit", openapi3.NewIntegerSchema().WithMin(1).WithMax(maxSearchLimit)).
		WithProperty("doc_type", openapi3.NewStringSchema().WithEnum("invoice", "statement", "notice", "certificate", "other")).
		WithProperty("category", openapi3.NewStringSchema().WithMaxLength(64)).
		WithProperty("period", openapi3.NewStringSchema().WithPattern(periodPattern))
	s.Required = []string{"query"}
	return sealed(s)
}

// searchResult is the shaped search payload: a count plus previews.
type searchResult struct {
	Count   int                     `json:"count"`
	Results []domain.RetrievedChunk `json:"results"`
}

func searchDocumentsHandler(search ports.SearchService) Handler {
	return func(ctx context.Context, ownerID string, args Args) (any, error) {
		filter := domain.SearchFilter{
			OwnerID:  ownerID,
			Type:     domain.DocumentType(args.String("doc_type")),
			Category: args.String("category"),
			Period:   args.String("period"),
		}
		chunks, err := search.Search(ctx, args.String("query"), args.Int("limit", defaultSearchLimit), filter)
		if err != nil {
			return nil, err
		}
		return searchResult{Count: len(chunks), Results: chunks}, nil
	}
}

func getSummarySchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("kind", openapi3.NewStringSchema().WithEnum("sales_total", "purchase_total", "gst_liability", "itc_summary", "vendor_count")).
		WithProperty("period", openapi3.NewStringSchema().WithPattern(periodPattern)).
		WithProperty("category", openapi3.NewStringSchema().WithMaxLength(64))
	s.Required = []string{"kind"}
	return sealed(s)
}

func getSummaryHandler(records ports.RecordStore) Handler {
	return func(ctx context.Context, ownerID string, args Args) (any, error) {
		return records.Summary(ctx, ownerID, domain.SummaryQuery{
			Kind:     domain.SummaryKind(args.String("kind")),
			Period:   args.String("period"),
			Category: args.String("category"),
		})
	}
}

func getRecordSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("invoice_number", openapi3.NewStringSchema().WithMinLength(1).WithMaxLength(64))
	s.Required = []string{"invoice_number"}
	return sealed(s)
}

func getRecordHandler(records ports.RecordStore) Handler {
	return func(ctx context.Context, ownerID string, args Args) (any, error) {
		return records.GetByNumber(ctx, ownerID, args.String("invoice_number"))
	}
}

func reconcileSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("source_a", openapi3.NewStringSchema().WithEnum("books")).
		WithProperty("source_b", openapi3.NewStringSchema().WithEnum("gstr2b")).
		WithProperty("period", openapi3.NewStringSchema().WithPattern(periodPattern))
	s.Required = []string{"source_a", "source_b", "period"}
	return sealed(s)
}

// reconcileReport is the shaped outcome of a live reconciliation run:
// aggregate counts and action items only.
type reconcileReport struct {
	Period         string              `json:"period"`
	MatchedCount   int                 `json:"matched_count"`
	MismatchCount  int                 `json:"mismatch_count"`
	UnmatchedLeft  int                 `json:"unmatched_in_books"`
	UnmatchedRight int                 `json:"unmatched_in_gstr2b"`
	AmountDelta    float64             `json:"total_amount_delta"`
	Partial        bool                `json:"partial"`
	ActionItems    []domain.ActionItem `json:"action_items,omitempty"`
}

func reconcileHandler(compliance ports.ComplianceService) Handler {
	return func(ctx context.Context, ownerID string, args Args) (any, error) {
		report, err := compliance.ReconcilePeriod(ctx, ownerID, args.String("period"))
		if err != nil {
			return nil, err
		}
		return reconcileReport{
			Period:         report.Period,
			MatchedCount:   len(report.Matched),
			MismatchCount:  len(report.Mismatches),
			UnmatchedLeft:  len(report.UnmatchedLeft),
			UnmatchedRight: len(report.UnmatchedRight),
			AmountDelta:    report.TotalAmountDelta(),
			Partial:        report.Partial,
			ActionItems:    report.ActionItems,
		}, nil
	}
}

func getReconciliationSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("paper_id", openapi3.NewStringSchema().WithMinLength(1).WithMaxLength(64))
	s.Required = []string{"paper_id"}
	return sealed(s)
}

// reconciliationSummary is what the firewall exposes for a reconciliation
// paper: counts and action items, never the full record sets.
type reconciliationSummary struct {
	PaperID        string              `json:"paper_id"`
	Period         string              `json:"period"`
	RuleVersion    string              `json:"rule_version,omitempty"`
	MatchedCount   int                 `json:"matched_count"`
	MismatchCount  int                 `json:"mismatch_count"`
	UnmatchedLeft  int                 `json:"unmatched_in_books"`
	UnmatchedRight int                 `json:"unmatched_in_gstr2b"`
	AmountDelta    float64             `json:"total_amount_delta"`
	Partial        bool                `json:"partial"`
	ActionItems    []domain.ActionItem `json:"action_items,omitempty"`
}

func getReconciliationHandler(papers ports.WorkingPaperStore) Handler {
	return func(ctx context.Context, ownerID string, args Args) (any, error) {
		paperID := args.String("paper_id")
		paper, err := papers.Get(ctx, paperID)
		if err != nil {
			return nil, err
		}
		if paper.OwnerID != ownerID {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get reconciliation", fmt.Errorf("paper %s", paperID))
		}
		report := paper.Reconciliation
		if report == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "get reconciliation", fmt.Errorf("paper %s holds no reconciliation", paperID))
		}
		return reconciliationSummary{
			PaperID:        paper.ID,
			Period:         report.Period,
			RuleVersion:    paper.RuleVersion,
			MatchedCount:   len(report.Matched),
			MismatchCount:  len(report.Mismatches),
			UnmatchedLeft:  len(report.UnmatchedLeft),
			UnmatchedRight: len(report.UnmatchedRight),
			AmountDelta:    report.TotalAmountDelta(),
			Partial:        report.Partial,
			ActionItems:    report.ActionItems,
		}, nil
	}
}

func explainRuleSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("rule_id", openapi3.NewStringSchema().WithMinLength(1).WithMaxLength(64)).
		WithProperty("scenario", openapi3.NewStringSchema().WithMaxLength(1024))
	s.Required = []string{"rule_id"}
	return sealed(s)
}

type ruleExplanation struct {
	RuleID      string `json:"rule_id"`
	Name        string `json:"name"`
	Citation    string `json:"citation"`
	Text        string `json:"text"`
	Explanation string `json:"explanation"`
	Triggers    bool   `json:"scenario_triggers"`
}

func explainRuleHandler(evaluator ports.RuleEvaluator) Handler {
	return func(ctx context.Context, ownerID string, args Args) (any, error) {
		rule, triggers, explanation, err := evaluator.ExplainRule(ctx, args.String("rule_id"), args.String("scenario"))
		if err != nil {
			return nil, err
		}
		return ruleExplanation{
			RuleID:      rule.ID,
			Name:        rule.Name,
			Citation:    rule.Citation,
			Text:        rule.Text,
			Explanation: explanation,
			Triggers:    triggers,
		}, nil
	}
}

// sealed closes a parameter object: any key outside the declared
// properties fails validation.
func sealed(s *openapi3.Schema) *openapi3.Schema {
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}
	return s
}
