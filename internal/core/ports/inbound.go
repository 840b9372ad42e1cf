package ports

import (
	"context"
	"io"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload
// orchestration. Re-uploading identical bytes for the same owner returns
// the existing document without re-processing.
type DocumentIngestor interface {
	Upload(ctx context.Context, ownerID, filename, mimeType string, declared *domain.Classification, body io.Reader) (*domain.Document, error)
	// Reprocess requeues a settled document (errored, flagged for review,
	// or already indexed) for another processing run.
	Reprocess(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document
// processing (classify, extract, chunk, embed, index).
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// SearchService is the merged contract over vector similarity and lexical
// matching.
type SearchService interface {
	Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}

// RuleEvaluator runs the deterministic compliance engine.
type RuleEvaluator interface {
	EvaluateInvoice(ctx context.Context, inv domain.InvoiceRecord, stmt *domain.GSTR2BStatement) (domain.EvaluationResult, error)
	EvaluateBatch(ctx context.Context, invs []domain.InvoiceRecord, stmt *domain.GSTR2BStatement) (domain.BatchEvaluation, error)
	ExplainRule(ctx context.Context, ruleID, scenario string) (*domain.Rule, bool, string, error)
}

// Reconciler matches two record sets and reports differences.
type Reconciler interface {
	Reconcile(ctx context.Context, left, right []domain.InvoiceRecord, period string) (*domain.ReconciliationReport, error)
}

// ComplianceService runs period-level compliance flows over stored
// datasets.
type ComplianceService interface {
	EvaluatePeriod(ctx context.Context, ownerID, period string) (*domain.BatchEvaluation, error)
	ReconcilePeriod(ctx context.Context, ownerID, period string) (*domain.ReconciliationReport, error)
}

// WorkingPaperService snapshots compliance runs and exports them.
type WorkingPaperService interface {
	SnapshotEvaluation(ctx context.Context, ownerID, period string, eval *domain.BatchEvaluation) (*domain.WorkingPaper, error)
	SnapshotReconciliation(ctx context.Context, ownerID string, report *domain.ReconciliationReport) (*domain.WorkingPaper, error)
	Get(ctx context.Context, id string) (*domain.WorkingPaper, error)
	ExportXLSX(ctx context.Context, id string) ([]byte, error)
}
