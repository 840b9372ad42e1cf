package workingpaper

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

func evaluationPaper() *domain.WorkingPaper {
	return &domain.WorkingPaper{
		ID:          "wp-1",
		Kind:        domain.PaperEvaluation,
		OwnerID:     "owner-1",
		Period:      "2024-07",
		RuleVersion: "2024.07",
		GeneratedAt: time.Date(2024, 8, 10, 12, 0, 0, 0, time.UTC),
		Citations:   []string{"Rule 36(4) CGST Rules", "Section 17(5) CGST Act"},
		Evaluation: &domain.BatchEvaluation{
			Results: []domain.EvaluationResult{
				{
					InvoiceNumber:  "INV-001",
					VendorGSTIN:    "29AAACR5055K1Z5",
					State:          domain.EvalEligible,
					TaxableValue:   10000,
					TotalTax:       1800,
					EligibleAmount: 1800,
					Reason:         "all conditions satisfied",
				},
				{
					InvoiceNumber: "INV-002",
					State:         domain.EvalBlocked,
					TotalTax:      900,
					BlockedAmount: 900,
					RulesApplied:  []domain.AppliedRule{{RuleID: "sec-17-5", Citation: "Section 17(5)"}},
					Reason:        "blocked category",
				},
			},
			Aggregate: domain.EvaluationAggregate{
				TotalInvoices: 2,
				EligibleCount: 1,
				BlockedCount:  1,
				TotalClaimed:  2700,
				TotalAllowed:  1800,
				TotalBlocked:  900,
				AllowedPct:    66.67,
			},
		},
	}
}

func TestExportXLSXEvaluation(t *testing.T) {
	raw, err := NewExporter().ExportXLSX(evaluationPaper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer book.Close()

	for _, sheet := range []string{"Summary", "Invoices", "Citations"} {
		if idx, err := book.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Fatalf("missing sheet %s (idx=%d err=%v)", sheet, idx, err)
		}
	}

	rows, err := book.GetRows("Invoices")
	if err != nil {
		t.Fatalf("read invoices sheet: %v", err)
	}
	// header + 2 results
	if len(rows) != 3 {
		t.Fatalf("invoice rows = %d, want 3", len(rows))
	}
	if rows[1][0] != "INV-001" {
		t.Fatalf("first invoice = %q", rows[1][0])
	}
}

func TestExportXLSXRejectsMissingPayload(t *testing.T) {
	paper := &domain.WorkingPaper{ID: "wp-2", Kind: domain.PaperEvaluation}
	if _, err := NewExporter().ExportXLSX(paper); err == nil {
		t.Fatal("expected error for missing evaluation payload")
	}
}

func TestExportXLSXReconciliation(t *testing.T) {
	left := &domain.InvoiceRecord{InvoiceNumber: "INV-001", VendorGSTIN: "29AAACR5055K1Z5"}
	paper := &domain.WorkingPaper{
		ID:          "wp-3",
		Kind:        domain.PaperReconciliation,
		Period:      "2024-07",
		GeneratedAt: time.Now(),
		Reconciliation: &domain.ReconciliationReport{
			Period:  "2024-07",
			Matched: []domain.ReconciliationMatch{{Left: left, Right: left, Kind: domain.MatchExact, Similarity: 1}},
			ActionItems: []domain.ActionItem{
				{Type: "missing_in_2b", InvoiceNumber: "INV-009", Description: "vendor has not filed GSTR-1"},
			},
		},
	}

	raw, err := NewExporter().ExportXLSX(paper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows("Reconciliation")
	if err != nil {
		t.Fatalf("read reconciliation sheet: %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("reconciliation rows = %d, want >= 2", len(rows))
	}
}
