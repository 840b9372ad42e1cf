package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo            ports.DocumentRepository
	storage         ports.ObjectStorage
	extractor       ports.TextExtractor
	classifier      ports.DocumentClassifier
	chunker         ports.Chunker
	embedder        ports.Embedder
	chunks          ports.ChunkRepository
	records         ports.RecordStore
	reviewThreshold float64
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	chunker ports.Chunker,
	embedder ports.Embedder,
	chunks ports.ChunkRepository,
	records ports.RecordStore,
	reviewThreshold float64,
) *ProcessDocumentUseCase {
	if reviewThreshold <= 0 || reviewThreshold > 1 {
		reviewThreshold = 0.3
	}
	return &ProcessDocumentUseCase{
		repo:            repo,
		storage:         storage,
		extractor:       extractor,
		classifier:      classifier,
		chunker:         chunker,
		embedder:        embedder,
		chunks:          chunks,
		records:         records,
		reviewThreshold: reviewThreshold,
	}
}

// ProcessByID runs the full pipeline: extract, classify, store records,
// chunk, embed, index. Failures leave the document in status=error with
// the message; extraction that needs a human leaves it in needs_review.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	finalStatus, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusError, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark error status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, finalStatus, ""); err != nil {
		return fmt.Errorf("set status=%s: %w", finalStatus, err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (domain.DocumentStatus, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("fetch document by id: %w", err)
	}

	content, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}

	classification := uc.classify(ctx, doc, content.Text)
	if err := uc.repo.SaveClassification(ctx, doc.ID, classification); err != nil {
		return "", fmt.Errorf("save classification: %w", err)
	}
	doc.Type = classification.Type
	doc.Category = classification.Category
	doc.Subcategory = classification.Subcategory
	doc.Period = classification.Period
	doc.Confidence = classification.Confidence

	if len(content.Records) > 0 {
		if err := uc.records.ReplaceForDocument(ctx, doc, content.Dataset, content.Records); err != nil {
			return "", fmt.Errorf("store extracted records: %w", err)
		}
	}

	if content.NeedsReview || classification.Confidence < uc.reviewThreshold {
		return domain.StatusNeedsReview, nil
	}

	if err := uc.index(ctx, doc, content.Text); err != nil {
		return "", err
	}
	return domain.StatusIndexed, nil
}

// classify merges declared labels over computed ones. A declared field
// set at upload is authoritative.
func (uc *ProcessDocumentUseCase) classify(ctx context.Context, doc *domain.Document, text string) domain.Classification {
	head := uc.readHead(ctx, doc)
	computed := uc.classifier.Classify(doc.Filename, head, text)

	merged := computed
	if doc.Confidence >= 1.0 {
		if doc.Type != "" {
			merged.Type = doc.Type
		}
		if doc.Category != "" {
			merged.Category = doc.Category
		}
		if doc.Subcategory != "" {
			merged.Subcategory = doc.Subcategory
		}
		merged.Confidence = 1.0
	}
	if doc.Period != "" && doc.Period != domain.PeriodUnknown {
		merged.Period = doc.Period
	}
	return merged
}

func (uc *ProcessDocumentUseCase) readHead(ctx context.Context, doc *domain.Document) []byte {
	reader, err := uc.storage.Open(ctx, doc.StorageRef)
	if err != nil {
		return nil
	}
	defer reader.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil
	}
	return head[:n]
}

func (uc *ProcessDocumentUseCase) index(ctx context.Context, doc *domain.Document, text string) error {
	pieces := uc.chunker.Split(text)
	if len(pieces) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, pieces)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(pieces)),
		)
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Ordinal:    i,
			Text:       piece,
			Embedding:  vectors[i],
		}
	}

	if err := uc.chunks.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}
