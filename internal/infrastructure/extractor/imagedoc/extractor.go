// Package imagedoc extracts text from scanned documents. Images are
// cleaned up locally, then recognized by an external OCR service; low
// recognition confidence routes the document to manual review.
package imagedoc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	_ "image/jpeg"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
	"github.com/ledgerguard/copilot/internal/infrastructure/resilience"
)

type Extractor struct {
	storage             ports.ObjectStorage
	ocr                 *OCRClient
	executor            *resilience.Executor
	confidenceThreshold float64
}

func NewExtractor(storage ports.ObjectStorage, ocr *OCRClient, executor *resilience.Executor, confidenceThreshold float64) *Extractor {
	if confidenceThreshold <= 0 || confidenceThreshold > 1 {
		confidenceThreshold = 0.6
	}
	return &Extractor{
		storage:             storage,
		ocr:                 ocr,
		executor:            executor,
		confidenceThreshold: confidenceThreshold,
	}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (*ports.ExtractedContent, error) {
	reader, err := e.storage.Open(ctx, doc.StorageRef)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	payload := raw
	if img, _, decodeErr := image.Decode(bytes.NewReader(raw)); decodeErr == nil {
		cleaned := Preprocess(img)
		var buf bytes.Buffer
		if encodeErr := png.Encode(&buf, cleaned); encodeErr == nil {
			payload = buf.Bytes()
		}
	}
	// Undecodable formats go to the OCR service as-is.

	var result OCRResult
	call := func(callCtx context.Context) error {
		var callErr error
		result, callErr = e.ocr.Recognize(callCtx, payload)
		return callErr
	}
	if err := e.executor.Execute(ctx, "ocr.recognize", call, ClassifyOCRError); err != nil {
		return nil, wrapTemporaryIfNeeded("ocr.recognize", err)
	}

	content := &ports.ExtractedContent{
		Text:       strings.TrimSpace(result.Text),
		Confidence: result.Confidence,
	}
	if result.Confidence < e.confidenceThreshold || content.Text == "" {
		content.NeedsReview = true
	}
	return content, nil
}
