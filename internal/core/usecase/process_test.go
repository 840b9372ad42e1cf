package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type processRepoFake struct {
	doc            *domain.Document
	getErr         error
	statusCalls    []statusCall
	classification domain.Classification
	clsSaved       bool
}

func (f *processRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *processRepoFake) GetByContentHash(context.Context, string, string) (*domain.Document, error) {
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get by hash", errors.New("not found"))
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return nil
}

func (f *processRepoFake) SaveClassification(_ context.Context, _ string, cls domain.Classification) error {
	f.classification = cls
	f.clsSaved = true
	return nil
}

type contentExtractorFake struct {
	content *ports.ExtractedContent
	err     error
}

func (f *contentExtractorFake) Extract(context.Context, *domain.Document) (*ports.ExtractedContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type keywordClassifierFake struct {
	cls domain.Classification
}

func (f *keywordClassifierFake) Classify(string, []byte, string) domain.Classification {
	return f.cls
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

type hashEmbedderFake struct {
	err error
}

func (f *hashEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *hashEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type chunkStoreFake struct {
	replaced map[string][]domain.Chunk
	err      error
}

func newChunkStoreFake() *chunkStoreFake {
	return &chunkStoreFake{replaced: make(map[string][]domain.Chunk)}
}

func (f *chunkStoreFake) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.replaced[documentID] = chunks
	return nil
}

func (f *chunkStoreFake) CountByDocument(_ context.Context, documentID string) (int, error) {
	return len(f.replaced[documentID]), nil
}

func (f *chunkStoreFake) SearchSemantic(context.Context, []float32, int, domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	return nil, nil
}

func (f *chunkStoreFake) SearchLexical(context.Context, string, int, domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	return nil, nil
}

type recordStoreFake struct {
	stored  map[string][]domain.InvoiceRecord
	dataset string
}

func newRecordStoreFake() *recordStoreFake {
	return &recordStoreFake{stored: make(map[string][]domain.InvoiceRecord)}
}

func (f *recordStoreFake) ReplaceForDocument(_ context.Context, doc *domain.Document, dataset string, records []domain.InvoiceRecord) error {
	f.stored[doc.ID] = records
	f.dataset = dataset
	return nil
}

func (f *recordStoreFake) GetByNumber(context.Context, string, string) (*domain.InvoiceRecord, error) {
	return nil, domain.WrapError(domain.ErrRecordNotFound, "get", errors.New("not found"))
}

func (f *recordStoreFake) ListDataset(context.Context, string, string, string) ([]domain.InvoiceRecord, error) {
	return nil, nil
}

func (f *recordStoreFake) Summary(context.Context, string, domain.SummaryQuery) (*domain.SummaryAggregate, error) {
	return &domain.SummaryAggregate{}, nil
}

func processDoc() *domain.Document {
	return &domain.Document{
		ID:         "doc-1",
		OwnerID:    "owner-1",
		Filename:   "invoice.txt",
		MimeType:   "text/plain",
		StorageRef: "doc-1_invoice.txt",
		Period:     domain.PeriodUnknown,
		Status:     domain.StatusUploaded,
	}
}

func newProcessUC(repo *processRepoFake, extractor *contentExtractorFake, chunks *chunkStoreFake, records *recordStoreFake) *ProcessDocumentUseCase {
	return NewProcessDocumentUseCase(
		repo,
		newStorageFake(),
		extractor,
		&keywordClassifierFake{cls: domain.Classification{
			Type: domain.TypeInvoice, Category: "gst", Period: "2024-07", Confidence: 0.8,
		}},
		&chunkerFake{chunks: []string{"part one", "part two", "part three"}},
		&hashEmbedderFake{},
		chunks,
		records,
		0.3,
	)
}

func TestProcessHappyPathIndexesWithContiguousOrdinals(t *testing.T) {
	repo := &processRepoFake{doc: processDoc()}
	chunks := newChunkStoreFake()
	records := newRecordStoreFake()
	uc := newProcessUC(repo, &contentExtractorFake{content: &ports.ExtractedContent{Text: "tax invoice text", Confidence: 1}}, chunks, records)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := repo.statusCalls
	if len(calls) != 2 || calls[0].status != domain.StatusProcessing || calls[1].status != domain.StatusIndexed {
		t.Fatalf("status calls = %+v", calls)
	}
	if !repo.clsSaved || repo.classification.Period != "2024-07" {
		t.Fatalf("classification not saved: %+v", repo.classification)
	}

	indexed := chunks.replaced["doc-1"]
	if len(indexed) != 3 {
		t.Fatalf("indexed chunks = %d, want 3", len(indexed))
	}
	for i, chunk := range indexed {
		if chunk.Ordinal != i {
			t.Fatalf("ordinal %d at position %d, want contiguous from 0", chunk.Ordinal, i)
		}
		if chunk.DocumentID != "doc-1" {
			t.Fatalf("chunk document = %q", chunk.DocumentID)
		}
	}
}

func TestProcessStoresTabularRecords(t *testing.T) {
	repo := &processRepoFake{doc: processDoc()}
	chunks := newChunkStoreFake()
	records := newRecordStoreFake()
	content := &ports.ExtractedContent{
		Text:    "Invoice No | Taxable",
		Dataset: "books",
		Records: []domain.InvoiceRecord{{InvoiceNumber: "INV-1", TaxableValue: 100}},
	}
	uc := newProcessUC(repo, &contentExtractorFake{content: content}, chunks, records)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records.stored["doc-1"]) != 1 || records.dataset != "books" {
		t.Fatalf("records not stored: %+v dataset=%q", records.stored, records.dataset)
	}
}

func TestProcessNeedsReviewSkipsIndexing(t *testing.T) {
	repo := &processRepoFake{doc: processDoc()}
	chunks := newChunkStoreFake()
	uc := newProcessUC(repo, &contentExtractorFake{content: &ports.ExtractedContent{Text: "blurry scan", NeedsReview: true}}, chunks, newRecordStoreFake())

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := repo.statusCalls[len(repo.statusCalls)-1]
	if final.status != domain.StatusNeedsReview {
		t.Fatalf("final status = %q, want needs_review", final.status)
	}
	if len(chunks.replaced) != 0 {
		t.Fatal("needs_review document must not be indexed")
	}
	if !repo.clsSaved {
		t.Fatal("classification should still be saved for review")
	}
}

func TestProcessExtractFailureMarksError(t *testing.T) {
	repo := &processRepoFake{doc: processDoc()}
	uc := newProcessUC(repo, &contentExtractorFake{err: errors.New("corrupt file")}, newChunkStoreFake(), newRecordStoreFake())

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected error")
	}

	final := repo.statusCalls[len(repo.statusCalls)-1]
	if final.status != domain.StatusError {
		t.Fatalf("final status = %q, want error", final.status)
	}
	if final.errMsg == "" {
		t.Fatal("error message must be recorded")
	}
}

func TestProcessDeclaredLabelsWinOverComputed(t *testing.T) {
	doc := processDoc()
	doc.Type = domain.TypeStatement
	doc.Category = "gst"
	doc.Confidence = 1.0
	repo := &processRepoFake{doc: doc}
	uc := newProcessUC(repo, &contentExtractorFake{content: &ports.ExtractedContent{Text: "tax invoice words", Confidence: 1}}, newChunkStoreFake(), newRecordStoreFake())

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.classification.Type != domain.TypeStatement {
		t.Fatalf("declared type overridden: %+v", repo.classification)
	}
	if repo.classification.Confidence != 1.0 {
		t.Fatalf("declared confidence = %v", repo.classification.Confidence)
	}
}
