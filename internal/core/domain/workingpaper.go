package domain

import "time"

type WorkingPaperKind string

const (
	PaperEvaluation     WorkingPaperKind = "itc_evaluation"
	PaperReconciliation WorkingPaperKind = "reconciliation"
)

// WorkingPaper is an immutable, exportable snapshot of a rules or
// reconciliation run.
type WorkingPaper struct {
	ID          string           `json:"id"`
	Kind        WorkingPaperKind `json:"kind"`
	OwnerID     string           `json:"owner_id"`
	Period      string           `json:"period"`
	RuleVersion string           `json:"rule_version,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`

	Evaluation     *BatchEvaluation      `json:"evaluation,omitempty"`
	Reconciliation *ReconciliationReport `json:"reconciliation,omitempty"`
	Citations      []string              `json:"citations,omitempty"`
}
