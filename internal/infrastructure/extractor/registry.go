// Package extractor routes documents to the extractor matching their
// MIME type.
package extractor

import (
	"context"
	"strings"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

type Registry struct {
	pdf       ports.TextExtractor
	image     ports.TextExtractor
	tabular   ports.TextExtractor
	plaintext ports.TextExtractor
}

func NewRegistry(pdf, image, tabular, plaintext ports.TextExtractor) *Registry {
	return &Registry{
		pdf:       pdf,
		image:     image,
		tabular:   tabular,
		plaintext: plaintext,
	}
}

func (r *Registry) Extract(ctx context.Context, doc *domain.Document) (*ports.ExtractedContent, error) {
	switch {
	case doc.MimeType == "application/pdf":
		return r.pdf.Extract(ctx, doc)
	case strings.HasPrefix(doc.MimeType, "image/"):
		return r.image.Extract(ctx, doc)
	case strings.Contains(doc.MimeType, "spreadsheetml") || strings.Contains(doc.MimeType, "csv"):
		return r.tabular.Extract(ctx, doc)
	default:
		return r.plaintext.Extract(ctx, doc)
	}
}
