package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type paperStoreFake struct {
	saved  map[string]*domain.WorkingPaper
	getErr error
}

func newPaperStoreFake() *paperStoreFake {
	return &paperStoreFake{saved: make(map[string]*domain.WorkingPaper)}
}

func (f *paperStoreFake) Save(ctx context.Context, paper *domain.WorkingPaper) error {
	f.saved[paper.ID] = paper
	return nil
}

func (f *paperStoreFake) Get(ctx context.Context, id string) (*domain.WorkingPaper, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	paper, ok := f.saved[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "papers.get", errors.New(id))
	}
	return paper, nil
}

type exporterFake struct {
	raw []byte
	err error
}

func (f *exporterFake) ExportXLSX(paper *domain.WorkingPaper) ([]byte, error) {
	return f.raw, f.err
}

func sampleEvaluation() *domain.BatchEvaluation {
	return &domain.BatchEvaluation{
		Results: []domain.EvaluationResult{
			{
				InvoiceNumber: "INV-001",
				State:         domain.EvalBlocked,
				RulesApplied: []domain.AppliedRule{
					{RuleID: "rule-36-4", Citation: "Rule 36(4), CGST Rules 2017"},
					{RuleID: "sec-17-5", Citation: "Section 17(5), CGST Act 2017"},
				},
			},
			{
				InvoiceNumber: "INV-002",
				State:         domain.EvalBlocked,
				RulesApplied: []domain.AppliedRule{
					{RuleID: "rule-36-4", Citation: "Rule 36(4), CGST Rules 2017"},
				},
			},
		},
		Aggregate: domain.EvaluationAggregate{TotalInvoices: 2, BlockedCount: 2},
	}
}

func TestSnapshotEvaluation(t *testing.T) {
	store := newPaperStoreFake()
	uc := NewWorkingPaperUseCase(store, &exporterFake{}, &ruleStoreFake{})

	paper, err := uc.SnapshotEvaluation(context.Background(), "owner-1", "2024-07", sampleEvaluation())
	if err != nil {
		t.Fatalf("SnapshotEvaluation: %v", err)
	}
	if paper.Kind != domain.PaperEvaluation {
		t.Fatalf("kind = %s", paper.Kind)
	}
	if paper.RuleVersion != "2024.04" {
		t.Fatalf("rule version = %q", paper.RuleVersion)
	}
	if len(paper.Citations) != 2 {
		t.Fatalf("citations = %v, want 2 distinct", paper.Citations)
	}
	if paper.Citations[0] != "Rule 36(4), CGST Rules 2017" {
		t.Fatalf("citation order = %v, want first-seen order", paper.Citations)
	}
	if _, ok := store.saved[paper.ID]; !ok {
		t.Fatal("paper not persisted")
	}
}

func TestSnapshotEvaluationEmptyRejected(t *testing.T) {
	uc := NewWorkingPaperUseCase(newPaperStoreFake(), &exporterFake{}, &ruleStoreFake{})

	_, err := uc.SnapshotEvaluation(context.Background(), "owner-1", "2024-07", &domain.BatchEvaluation{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid-input kind", err)
	}
}

func TestSnapshotReconciliation(t *testing.T) {
	store := newPaperStoreFake()
	uc := NewWorkingPaperUseCase(store, &exporterFake{}, &ruleStoreFake{})

	report := &domain.ReconciliationReport{Period: "2024-07", SourceLeft: "books", SourceRight: "gstr2b"}
	paper, err := uc.SnapshotReconciliation(context.Background(), "owner-1", report)
	if err != nil {
		t.Fatalf("SnapshotReconciliation: %v", err)
	}
	if paper.Kind != domain.PaperReconciliation {
		t.Fatalf("kind = %s", paper.Kind)
	}
	if paper.Period != "2024-07" {
		t.Fatalf("period = %q, want taken from the report", paper.Period)
	}
}

func TestExportXLSXRoundTrip(t *testing.T) {
	store := newPaperStoreFake()
	uc := NewWorkingPaperUseCase(store, &exporterFake{raw: []byte("PK\x03\x04")}, &ruleStoreFake{})

	paper, err := uc.SnapshotEvaluation(context.Background(), "owner-1", "2024-07", sampleEvaluation())
	if err != nil {
		t.Fatalf("SnapshotEvaluation: %v", err)
	}

	raw, err := uc.ExportXLSX(context.Background(), paper.ID)
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("empty export")
	}
}

func TestExportXLSXUnknownPaper(t *testing.T) {
	uc := NewWorkingPaperUseCase(newPaperStoreFake(), &exporterFake{}, &ruleStoreFake{})

	_, err := uc.ExportXLSX(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrRecordNotFound) {
		t.Fatalf("err = %v, want record-not-found kind", err)
	}
}
