package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload registers a document and queues it for processing. Re-uploading
// identical bytes for the same owner returns the existing document: no
// storage write, no new event, no duplicate chunks.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	ownerID, filename, mimeType string,
	declared *domain.Classification,
	body io.Reader,
) (*domain.Document, error) {
	if ownerID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("empty owner id"))
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("empty file %q", filename))
	}

	sum := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(sum[:])

	existing, err := uc.repo.GetByContentHash(ctx, ownerID, contentHash)
	if err == nil {
		// A stalled duplicate gets another processing run; a healthy one
		// stays a pure no-op.
		if existing.Status == domain.StatusError || existing.Status == domain.StatusNeedsReview {
			return uc.requeue(ctx, existing)
		}
		return existing, nil
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filename,
		MimeType:    mimeType,
		StorageRef:  storageKey,
		ContentHash: contentHash,
		Period:      domain.PeriodUnknown,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyDeclaredClassification(doc, declared)

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// Reprocess requeues a settled document for another classification and
// indexing run. A document mid-flight is rejected.
func (uc *IngestDocumentUseCase) Reprocess(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "reprocess", fmt.Errorf("document %s", documentID))
	}
	if doc.Status == domain.StatusProcessing {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reprocess", fmt.Errorf("document %s is still processing", documentID))
	}
	return uc.requeue(ctx, doc)
}

func (uc *IngestDocumentUseCase) requeue(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusUploaded, ""); err != nil {
		return nil, fmt.Errorf("reset document status: %w", err)
	}
	doc.Status = domain.StatusUploaded
	doc.Error = ""
	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}
	return doc, nil
}

// applyDeclaredClassification records user-declared labels. Declared
// fields are authoritative: processing keeps them over computed values.
func applyDeclaredClassification(doc *domain.Document, declared *domain.Classification) {
	if declared == nil {
		return
	}
	if declared.Type != "" {
		doc.Type = declared.Type
	}
	if declared.Category != "" {
		doc.Category = declared.Category
	}
	if declared.Subcategory != "" {
		doc.Subcategory = declared.Subcategory
	}
	if declared.Period != "" {
		doc.Period = declared.Period
	}
	if declared.Type != "" || declared.Category != "" {
		doc.Confidence = 1.0
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
