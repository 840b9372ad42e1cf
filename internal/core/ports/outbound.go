package ports

import (
	"context"
	"io"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByContentHash(ctx context.Context, ownerID, contentHash string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveClassification(ctx context.Context, id string, cls domain.Classification) error
}

// ChunkRepository stores chunk text, embeddings and the full-text index.
// ReplaceChunks swaps a document's chunk set in one transaction so a
// reader never observes a partially re-indexed document.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	CountByDocument(ctx context.Context, documentID string) (int, error)
	SearchSemantic(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
	SearchLexical(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}

// RecordStore persists normalized invoice/statement lines parsed out of
// tabular documents, keyed by dataset ("books" or "gstr2b").
type RecordStore interface {
	ReplaceForDocument(ctx context.Context, doc *domain.Document, dataset string, records []domain.InvoiceRecord) error
	GetByNumber(ctx context.Context, ownerID, invoiceNumber string) (*domain.InvoiceRecord, error)
	ListDataset(ctx context.Context, ownerID, dataset, period string) ([]domain.InvoiceRecord, error)
	Summary(ctx context.Context, ownerID string, q domain.SummaryQuery) (*domain.SummaryAggregate, error)
}

// RuleStore persists versioned rules. ApplyBundle is atomic: a bundle is
// either fully active or not applied at all.
type RuleStore interface {
	ApplyBundle(ctx context.Context, bundle domain.RuleBundle) error
	ActiveRules(ctx context.Context) ([]domain.Rule, error)
	GetRule(ctx context.Context, ruleID string) (*domain.Rule, error)
	ListVersions(ctx context.Context) ([]domain.RuleVersion, error)
	LatestVersion(ctx context.Context) (*domain.RuleVersion, error)
}

// AuditStore is append-only. There is deliberately no update or delete.
type AuditStore interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// ExtractedContent is the normalized output of an extractor. Records is
// populated for tabular inputs; RowErrors reports per-row coercion
// failures without failing the file.
type ExtractedContent struct {
	Text        string
	Records     []domain.InvoiceRecord
	Dataset     string
	Confidence  float64
	NeedsReview bool
	RowErrors   []string
}

// TextExtractor extracts normalized text/records from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (*ExtractedContent, error)
}

// DocumentClassifier assigns type/category/period from a file's leading
// bytes, name and extracted text. Classification is deterministic.
type DocumentClassifier interface {
	Classify(filename string, head []byte, text string) domain.Classification
}

// Embedder builds vectors for chunk and query text. Embedding is a pure
// function of the input text: same text, same vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits normalized text into overlapping windows.
type Chunker interface {
	Split(text string) []string
}

// WorkingPaperStore persists exported snapshots. Papers are immutable.
type WorkingPaperStore interface {
	Save(ctx context.Context, paper *domain.WorkingPaper) error
	Get(ctx context.Context, id string) (*domain.WorkingPaper, error)
}

// WorkingPaperExporter renders a paper to a portable byte format.
type WorkingPaperExporter interface {
	ExportXLSX(paper *domain.WorkingPaper) ([]byte, error)
}
