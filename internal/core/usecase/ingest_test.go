package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type ingestRepoFake struct {
	byHash        map[string]*domain.Document
	byID          map[string]*domain.Document
	created       []*domain.Document
	statusUpdates []domain.DocumentStatus
	createErr     error
}

func (f *ingestRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, doc)
	return nil
}

func (f *ingestRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if doc, ok := f.byID[id]; ok {
		return doc, nil
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("not found"))
}

func (f *ingestRepoFake) GetByContentHash(_ context.Context, _, hash string) (*domain.Document, error) {
	if doc, ok := f.byHash[hash]; ok {
		return doc, nil
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get by hash", errors.New("not found"))
}

func (f *ingestRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, _ string) error {
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *ingestRepoFake) SaveClassification(context.Context, string, domain.Classification) error {
	return nil
}

type storageFake struct {
	saved   map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type queueFake struct {
	published  []string
	publishErr error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestUploadCreatesAndPublishes(t *testing.T) {
	repo := &ingestRepoFake{byHash: map[string]*domain.Document{}}
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "owner-1", "invoice.pdf", "application/pdf", nil, bytes.NewReader([]byte("%PDF content")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.OwnerID != "owner-1" {
		t.Fatalf("owner = %q", doc.OwnerID)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("status = %q", doc.Status)
	}
	if doc.ContentHash == "" {
		t.Fatal("content hash not computed")
	}
	if doc.Period != domain.PeriodUnknown {
		t.Fatalf("period = %q, want unknown", doc.Period)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created = %d docs", len(repo.created))
	}
	if len(storage.saved) != 1 {
		t.Fatalf("saved = %d objects", len(storage.saved))
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("published = %v", queue.published)
	}
}

func TestUploadDedupReturnsExistingWithoutSideEffects(t *testing.T) {
	repo := &ingestRepoFake{byHash: map[string]*domain.Document{}}
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	content := []byte("same bytes")
	first, err := uc.Upload(context.Background(), "owner-1", "a.txt", "text/plain", nil, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	repo.byHash[first.ContentHash] = first

	second, err := uc.Upload(context.Background(), "owner-1", "b.txt", "text/plain", nil, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected existing document, got %s vs %s", second.ID, first.ID)
	}
	if len(repo.created) != 1 {
		t.Fatalf("dedup created a second row: %d", len(repo.created))
	}
	if len(storage.saved) != 1 {
		t.Fatalf("dedup wrote a second object: %d", len(storage.saved))
	}
	if len(queue.published) != 1 {
		t.Fatalf("dedup published a second event: %v", queue.published)
	}
}

func TestUploadDedupRequeuesErroredDocument(t *testing.T) {
	repo := &ingestRepoFake{byHash: map[string]*domain.Document{}}
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	content := []byte("broken scan")
	first, err := uc.Upload(context.Background(), "owner-1", "a.png", "image/png", nil, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	first.Status = domain.StatusError
	first.Error = "ocr timeout"
	repo.byHash[first.ContentHash] = first

	second, err := uc.Upload(context.Background(), "owner-1", "a-again.png", "image/png", nil, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected existing document, got %s vs %s", second.ID, first.ID)
	}
	if second.Status != domain.StatusUploaded || second.Error != "" {
		t.Fatalf("errored duplicate not reset: %+v", second)
	}
	if len(repo.created) != 1 || len(storage.saved) != 1 {
		t.Fatal("requeue must not create new rows or objects")
	}
	if len(queue.published) != 2 {
		t.Fatalf("published = %v, want a second event for the errored duplicate", queue.published)
	}
	if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != domain.StatusUploaded {
		t.Fatalf("status updates = %v", repo.statusUpdates)
	}
}

func TestReprocessRequeuesSettledDocument(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", OwnerID: "owner-1", Status: domain.StatusError, Error: "boom"}
	repo := &ingestRepoFake{byID: map[string]*domain.Document{"doc-1": doc}}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, newStorageFake(), queue)

	got, err := uc.Reprocess(context.Background(), "owner-1", "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.StatusUploaded || got.Error != "" {
		t.Fatalf("document not reset: %+v", got)
	}
	if len(queue.published) != 1 || queue.published[0] != "doc-1" {
		t.Fatalf("published = %v", queue.published)
	}
}

func TestReprocessRejectsWrongOwnerAndInFlight(t *testing.T) {
	repo := &ingestRepoFake{byID: map[string]*domain.Document{
		"doc-1": {ID: "doc-1", OwnerID: "owner-1", Status: domain.StatusError},
		"doc-2": {ID: "doc-2", OwnerID: "owner-1", Status: domain.StatusProcessing},
	}}
	uc := NewIngestDocumentUseCase(repo, newStorageFake(), &queueFake{})

	if _, err := uc.Reprocess(context.Background(), "owner-2", "doc-1"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("foreign owner: err = %v, want not-found kind", err)
	}
	if _, err := uc.Reprocess(context.Background(), "owner-1", "doc-2"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("in-flight document: err = %v, want invalid-input kind", err)
	}
}

func TestUploadAppliesDeclaredClassification(t *testing.T) {
	repo := &ingestRepoFake{byHash: map[string]*domain.Document{}}
	uc := NewIngestDocumentUseCase(repo, newStorageFake(), &queueFake{})

	declared := &domain.Classification{
		Type:     domain.TypeInvoice,
		Category: "gst",
		Period:   "2024-07",
	}
	doc, err := uc.Upload(context.Background(), "owner-1", "inv.pdf", "application/pdf", declared, bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Type != domain.TypeInvoice || doc.Category != "gst" || doc.Period != "2024-07" {
		t.Fatalf("declared classification not applied: %+v", doc)
	}
	if doc.Confidence != 1.0 {
		t.Fatalf("declared confidence = %v, want 1.0", doc.Confidence)
	}
}

func TestUploadRejectsEmptyInput(t *testing.T) {
	uc := NewIngestDocumentUseCase(&ingestRepoFake{byHash: map[string]*domain.Document{}}, newStorageFake(), &queueFake{})

	if _, err := uc.Upload(context.Background(), "", "a.txt", "text/plain", nil, bytes.NewReader([]byte("x"))); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("empty owner: expected ErrInvalidInput, got %v", err)
	}
	if _, err := uc.Upload(context.Background(), "owner-1", "a.txt", "text/plain", nil, bytes.NewReader(nil)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("empty body: expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadPublishFailureSurfaces(t *testing.T) {
	queue := &queueFake{publishErr: errors.New("nats down")}
	uc := NewIngestDocumentUseCase(&ingestRepoFake{byHash: map[string]*domain.Document{}}, newStorageFake(), queue)

	if _, err := uc.Upload(context.Background(), "owner-1", "a.txt", "text/plain", nil, bytes.NewReader([]byte("x"))); err == nil {
		t.Fatal("expected publish error to surface")
	}
}
