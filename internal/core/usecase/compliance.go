package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

// ComplianceUseCase runs period-level compliance flows over the records
// the pipeline has already parsed: the books dataset on one side, the
// GSTR-2B dataset on the other.
type ComplianceUseCase struct {
	records   ports.RecordStore
	evaluator ports.RuleEvaluator
	reconcile ports.Reconciler
}

func NewComplianceUseCase(records ports.RecordStore, evaluator ports.RuleEvaluator, reconcile ports.Reconciler) *ComplianceUseCase {
	return &ComplianceUseCase{
		records:   records,
		evaluator: evaluator,
		reconcile: reconcile,
	}
}

// EvaluatePeriod evaluates every purchase invoice recorded for a period
// against the active rules, cross-referencing GSTR-2B lines for the same
// period. A missing GSTR-2B dataset is not an error: evaluation proceeds
// with no statement and vendor checks fail closed.
func (uc *ComplianceUseCase) EvaluatePeriod(ctx context.Context, ownerID, period string) (*domain.BatchEvaluation, error) {
	if period == "" || period == domain.PeriodUnknown {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate period", errors.New("period is required"))
	}

	invoices, err := uc.records.ListDataset(ctx, ownerID, domain.DatasetBooks, period)
	if err != nil {
		return nil, fmt.Errorf("load books records: %w", err)
	}
	if len(invoices) == 0 {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "evaluate period", fmt.Errorf("no books records for %s", period))
	}

	stmt, err := uc.statementFor(ctx, ownerID, period)
	if err != nil {
		return nil, err
	}

	batch, err := uc.evaluator.EvaluateBatch(ctx, invoices, stmt)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ReconcilePeriod matches the period's books records against its GSTR-2B
// records.
func (uc *ComplianceUseCase) ReconcilePeriod(ctx context.Context, ownerID, period string) (*domain.ReconciliationReport, error) {
	if period == "" || period == domain.PeriodUnknown {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reconcile period", errors.New("period is required"))
	}

	left, err := uc.records.ListDataset(ctx, ownerID, domain.DatasetBooks, period)
	if err != nil {
		return nil, fmt.Errorf("load books records: %w", err)
	}
	right, err := uc.records.ListDataset(ctx, ownerID, domain.DatasetGSTR2B, period)
	if err != nil {
		return nil, fmt.Errorf("load gstr2b records: %w", err)
	}

	return uc.reconcile.Reconcile(ctx, left, right, period)
}

// statementFor assembles a GSTR-2B statement from the stored dataset.
// No records means no statement, which the rules engine treats as
// "vendors unverifiable".
func (uc *ComplianceUseCase) statementFor(ctx context.Context, ownerID, period string) (*domain.GSTR2BStatement, error) {
	lines, err := uc.records.ListDataset(ctx, ownerID, domain.DatasetGSTR2B, period)
	if err != nil {
		return nil, fmt.Errorf("load gstr2b records: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var vendors []string
	for _, line := range lines {
		if line.VendorGSTIN == "" || seen[line.VendorGSTIN] {
			continue
		}
		seen[line.VendorGSTIN] = true
		vendors = append(vendors, line.VendorGSTIN)
	}

	return &domain.GSTR2BStatement{
		Period:  period,
		Vendors: vendors,
		Lines:   lines,
	}, nil
}
