// Package workingpaper renders evaluation and reconciliation snapshots
// into reviewer-facing XLSX workbooks.
package workingpaper

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ExportXLSX(paper *domain.WorkingPaper) ([]byte, error) {
	book := excelize.NewFile()
	defer book.Close()

	if err := writeSummarySheet(book, paper); err != nil {
		return nil, err
	}

	switch paper.Kind {
	case domain.PaperEvaluation:
		if paper.Evaluation == nil {
			return nil, fmt.Errorf("evaluation paper %s has no evaluation payload", paper.ID)
		}
		if err := writeEvaluationSheet(book, paper.Evaluation); err != nil {
			return nil, err
		}
	case domain.PaperReconciliation:
		if paper.Reconciliation == nil {
			return nil, fmt.Errorf("reconciliation paper %s has no report payload", paper.ID)
		}
		if err := writeReconciliationSheet(book, paper.Reconciliation); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown working paper kind %q", paper.Kind)
	}

	if err := writeCitationsSheet(book, paper); err != nil {
		return nil, err
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummarySheet(book *excelize.File, paper *domain.WorkingPaper) error {
	const sheet = "Summary"
	if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	rows := [][]any{
		{"Working Paper", paper.ID},
		{"Kind", string(paper.Kind)},
		{"Period", paper.Period},
		{"Rule Version", paper.RuleVersion},
		{"Generated At", paper.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if paper.Kind == domain.PaperEvaluation && paper.Evaluation != nil {
		agg := paper.Evaluation.Aggregate
		rows = append(rows,
			[]any{},
			[]any{"Invoices", agg.TotalInvoices},
			[]any{"Eligible", agg.EligibleCount},
			[]any{"Blocked", agg.BlockedCount},
			[]any{"Pending", agg.PendingCount},
			[]any{"ITC Claimed", agg.TotalClaimed},
			[]any{"ITC Allowed", agg.TotalAllowed},
			[]any{"ITC Blocked", agg.TotalBlocked},
			[]any{"Allowed %", agg.AllowedPct},
		)
	}
	if paper.Kind == domain.PaperReconciliation && paper.Reconciliation != nil {
		rep := paper.Reconciliation
		rows = append(rows,
			[]any{},
			[]any{"Matched", rep.MatchedCount()},
			[]any{"Mismatched", len(rep.Mismatches)},
			[]any{"Unmatched (books)", len(rep.UnmatchedLeft)},
			[]any{"Unmatched (GSTR-2B)", len(rep.UnmatchedRight)},
			[]any{"Amount Delta", rep.TotalAmountDelta()},
			[]any{"Partial Run", rep.Partial},
		)
	}

	return writeRows(book, sheet, rows)
}

func writeEvaluationSheet(book *excelize.File, eval *domain.BatchEvaluation) error {
	const sheet = "Invoices"
	if _, err := book.NewSheet(sheet); err != nil {
		return fmt.Errorf("create invoices sheet: %w", err)
	}

	rows := [][]any{{
		"Invoice", "Vendor GSTIN", "Result", "Taxable Value", "Tax", "Eligible", "Blocked", "Rules", "Reason",
	}}
	for _, res := range eval.Results {
		rules := ""
		for i, applied := range res.RulesApplied {
			if i > 0 {
				rules += "; "
			}
			rules += applied.RuleID
		}
		rows = append(rows, []any{
			res.InvoiceNumber, res.VendorGSTIN, string(res.State),
			res.TaxableValue, res.TotalTax, res.EligibleAmount, res.BlockedAmount,
			rules, res.Reason,
		})
	}
	return writeRows(book, sheet, rows)
}

func writeReconciliationSheet(book *excelize.File, rep *domain.ReconciliationReport) error {
	const sheet = "Reconciliation"
	if _, err := book.NewSheet(sheet); err != nil {
		return fmt.Errorf("create reconciliation sheet: %w", err)
	}

	rows := [][]any{{
		"Status", "Invoice (books)", "Invoice (GSTR-2B)", "Vendor GSTIN", "Amount Delta", "Similarity",
	}}
	appendMatch := func(m domain.ReconciliationMatch) {
		leftNo, rightNo, vendor := "", "", ""
		if m.Left != nil {
			leftNo = m.Left.InvoiceNumber
			vendor = m.Left.VendorGSTIN
		}
		if m.Right != nil {
			rightNo = m.Right.InvoiceNumber
			if vendor == "" {
				vendor = m.Right.VendorGSTIN
			}
		}
		rows = append(rows, []any{string(m.Kind), leftNo, rightNo, vendor, m.AmountDelta, m.Similarity})
	}
	for _, m := range rep.Matched {
		appendMatch(m)
	}
	for _, m := range rep.Mismatches {
		appendMatch(m)
	}
	for _, rec := range rep.UnmatchedLeft {
		rows = append(rows, []any{string(domain.MatchUnmatchedLeft), rec.InvoiceNumber, "", rec.VendorGSTIN, rec.Total(), 0.0})
	}
	for _, rec := range rep.UnmatchedRight {
		rows = append(rows, []any{string(domain.MatchUnmatchedRight), "", rec.InvoiceNumber, rec.VendorGSTIN, rec.Total(), 0.0})
	}

	if len(rep.ActionItems) > 0 {
		rows = append(rows, []any{}, []any{"Action Items"})
		for _, item := range rep.ActionItems {
			rows = append(rows, []any{item.Type, item.InvoiceNumber, item.Description, item.Recommendation})
		}
	}
	return writeRows(book, sheet, rows)
}

func writeCitationsSheet(book *excelize.File, paper *domain.WorkingPaper) error {
	const sheet = "Citations"
	if _, err := book.NewSheet(sheet); err != nil {
		return fmt.Errorf("create citations sheet: %w", err)
	}

	rows := [][]any{{"Citation"}}
	for _, citation := range paper.Citations {
		rows = append(rows, []any{citation})
	}
	return writeRows(book, sheet, rows)
}

func writeRows(book *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+1, err)
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d on %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
