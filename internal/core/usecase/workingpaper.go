package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

// WorkingPaperUseCase snapshots evaluation and reconciliation runs into
// immutable papers a reviewer can export.
type WorkingPaperUseCase struct {
	store    ports.WorkingPaperStore
	exporter ports.WorkingPaperExporter
	rules    ports.RuleStore
}

func NewWorkingPaperUseCase(store ports.WorkingPaperStore, exporter ports.WorkingPaperExporter, rules ports.RuleStore) *WorkingPaperUseCase {
	return &WorkingPaperUseCase{
		store:    store,
		exporter: exporter,
		rules:    rules,
	}
}

func (uc *WorkingPaperUseCase) SnapshotEvaluation(ctx context.Context, ownerID, period string, eval *domain.BatchEvaluation) (*domain.WorkingPaper, error) {
	if eval == nil || len(eval.Results) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "snapshot evaluation", fmt.Errorf("empty evaluation"))
	}

	paper := &domain.WorkingPaper{
		ID:          uuid.NewString(),
		Kind:        domain.PaperEvaluation,
		OwnerID:     ownerID,
		Period:      period,
		GeneratedAt: time.Now().UTC(),
		Evaluation:  eval,
		Citations:   evaluationCitations(eval),
	}
	if version, err := uc.rules.LatestVersion(ctx); err == nil {
		paper.RuleVersion = version.Version
	}

	if err := uc.store.Save(ctx, paper); err != nil {
		return nil, fmt.Errorf("save working paper: %w", err)
	}
	return paper, nil
}

func (uc *WorkingPaperUseCase) SnapshotReconciliation(ctx context.Context, ownerID string, report *domain.ReconciliationReport) (*domain.WorkingPaper, error) {
	if report == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "snapshot reconciliation", fmt.Errorf("nil report"))
	}

	paper := &domain.WorkingPaper{
		ID:             uuid.NewString(),
		Kind:           domain.PaperReconciliation,
		OwnerID:        ownerID,
		Period:         report.Period,
		GeneratedAt:    time.Now().UTC(),
		Reconciliation: report,
	}

	if err := uc.store.Save(ctx, paper); err != nil {
		return nil, fmt.Errorf("save working paper: %w", err)
	}
	return paper, nil
}

func (uc *WorkingPaperUseCase) Get(ctx context.Context, id string) (*domain.WorkingPaper, error) {
	return uc.store.Get(ctx, id)
}

func (uc *WorkingPaperUseCase) ExportXLSX(ctx context.Context, id string) ([]byte, error) {
	paper, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := uc.exporter.ExportXLSX(paper)
	if err != nil {
		return nil, fmt.Errorf("export working paper %s: %w", id, err)
	}
	return raw, nil
}

// evaluationCitations collects the distinct citations of every applied
// rule, in first-seen order.
func evaluationCitations(eval *domain.BatchEvaluation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, res := range eval.Results {
		for _, applied := range res.RulesApplied {
			if applied.Citation == "" || seen[applied.Citation] {
				continue
			}
			seen[applied.Citation] = true
			out = append(out, applied.Citation)
		}
	}
	return out
}
