package usecase

import (
	"context"
	"testing"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type complianceRecordsFake struct {
	datasets map[string][]domain.InvoiceRecord
}

func (f *complianceRecordsFake) ReplaceForDocument(context.Context, *domain.Document, string, []domain.InvoiceRecord) error {
	return nil
}

func (f *complianceRecordsFake) GetByNumber(context.Context, string, string) (*domain.InvoiceRecord, error) {
	return nil, nil
}

func (f *complianceRecordsFake) ListDataset(_ context.Context, _ string, dataset, _ string) ([]domain.InvoiceRecord, error) {
	return f.datasets[dataset], nil
}

func (f *complianceRecordsFake) Summary(context.Context, string, domain.SummaryQuery) (*domain.SummaryAggregate, error) {
	return nil, nil
}

func TestEvaluatePeriodBuildsStatementFromDataset(t *testing.T) {
	inv := purchaseInvoice("INV-001", 180)
	line := inv
	records := &complianceRecordsFake{datasets: map[string][]domain.InvoiceRecord{
		domain.DatasetBooks:  {inv},
		domain.DatasetGSTR2B: {line},
	}}
	uc := NewComplianceUseCase(records, seededEvaluator(), defaultReconciler())

	batch, err := uc.EvaluatePeriod(context.Background(), "owner-1", "2024-07")
	if err != nil {
		t.Fatalf("EvaluatePeriod: %v", err)
	}
	if len(batch.Results) != 1 {
		t.Fatalf("results = %d", len(batch.Results))
	}
	if batch.Results[0].State != domain.EvalEligible {
		t.Fatalf("state = %s, want eligible when the vendor appears in gstr2b", batch.Results[0].State)
	}
}

func TestEvaluatePeriodWithoutStatementFailsClosed(t *testing.T) {
	records := &complianceRecordsFake{datasets: map[string][]domain.InvoiceRecord{
		domain.DatasetBooks: {purchaseInvoice("INV-001", 180)},
	}}
	uc := NewComplianceUseCase(records, seededEvaluator(), defaultReconciler())

	batch, err := uc.EvaluatePeriod(context.Background(), "owner-1", "2024-07")
	if err != nil {
		t.Fatalf("EvaluatePeriod: %v", err)
	}
	if batch.Results[0].State != domain.EvalBlocked {
		t.Fatalf("state = %s, want blocked without a gstr2b dataset", batch.Results[0].State)
	}
}

func TestEvaluatePeriodNoBooksRecords(t *testing.T) {
	uc := NewComplianceUseCase(&complianceRecordsFake{datasets: map[string][]domain.InvoiceRecord{}}, seededEvaluator(), defaultReconciler())

	_, err := uc.EvaluatePeriod(context.Background(), "owner-1", "2024-07")
	if !domain.IsKind(err, domain.ErrRecordNotFound) {
		t.Fatalf("err = %v, want record-not-found kind", err)
	}
}

func TestEvaluatePeriodRequiresPeriod(t *testing.T) {
	uc := NewComplianceUseCase(&complianceRecordsFake{}, seededEvaluator(), defaultReconciler())

	for _, period := range []string{"", domain.PeriodUnknown} {
		if _, err := uc.EvaluatePeriod(context.Background(), "owner-1", period); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("period %q: err = %v, want invalid-input kind", period, err)
		}
	}
}

func TestReconcilePeriod(t *testing.T) {
	records := &complianceRecordsFake{datasets: map[string][]domain.InvoiceRecord{
		domain.DatasetBooks:  {reconRecord("INV-001", "29AAACG1234A1Z5", 1000, 180, 10)},
		domain.DatasetGSTR2B: {reconRecord("INV-001", "29AAACG1234A1Z5", 1000, 180, 10)},
	}}
	uc := NewComplianceUseCase(records, seededEvaluator(), defaultReconciler())

	report, err := uc.ReconcilePeriod(context.Background(), "owner-1", "2024-07")
	if err != nil {
		t.Fatalf("ReconcilePeriod: %v", err)
	}
	if len(report.Matched) != 1 {
		t.Fatalf("matched = %d", len(report.Matched))
	}
}
