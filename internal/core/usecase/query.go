package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

type SearchUseCase struct {
	embedder   ports.Embedder
	chunks     ports.ChunkRepository
	maxLimit   int
	candidates int
	rrfK       int
}

func NewSearchUseCase(embedder ports.Embedder, chunks ports.ChunkRepository, maxLimit, candidates, rrfK int) *SearchUseCase {
	if maxLimit <= 0 {
		maxLimit = 20
	}
	if candidates < maxLimit {
		candidates = maxLimit + 10
	}
	return &SearchUseCase{
		embedder:   embedder,
		chunks:     chunks,
		maxLimit:   maxLimit,
		candidates: candidates,
		rrfK:       rrfK,
	}
}

// Search runs semantic and lexical retrieval and fuses the candidate
// lists. The limit is clamped server-side; callers cannot widen it.
func (uc *SearchUseCase) Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("empty query"))
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > uc.maxLimit {
		limit = uc.maxLimit
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	semantic, err := uc.chunks.SearchSemantic(ctx, queryVector, uc.candidates, filter)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	lexical, err := uc.chunks.SearchLexical(ctx, query, uc.candidates, filter)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	fused := fuseCandidatesRRF(semantic, lexical, uc.rrfK)
	reranked := rerankCandidates(query, fused, limit)
	return trimCandidates(reranked, limit), nil
}
