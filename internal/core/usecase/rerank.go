package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

// rerankCandidates re-scores the head of a fused candidate list by
// blending the fused score with direct query token overlap, then
// rescales so the best candidate keeps score 1. Chunks past topN keep
// their fused scores; the caller trims them away.
func rerankCandidates(query string, fused []domain.RetrievedChunk, topN int) []domain.RetrievedChunk {
	if len(fused) == 0 {
		return fused
	}
	if topN <= 0 || topN > len(fused) {
		topN = len(fused)
	}

	out := make([]domain.RetrievedChunk, len(fused))
	copy(out, fused)
	head := out[:topN]
	queryTokens := tokenSet(query)

	minScore, maxScore := head[0].Score, head[0].Score
	for _, chunk := range head[1:] {
		if chunk.Score < minScore {
			minScore = chunk.Score
		}
		if chunk.Score > maxScore {
			maxScore = chunk.Score
		}
	}
	scoreRange := maxScore - minScore
	normalize := func(v float64) float64 {
		if scoreRange <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / scoreRange
	}

	for i := range head {
		overlap := tokenOverlap(queryTokens, tokenSet(head[i].Text))
		head[i].Score = 0.7*normalize(head[i].Score) + 0.3*overlap
	}

	sort.SliceStable(head, func(i, j int) bool {
		if head[i].Score != head[j].Score {
			return head[i].Score > head[j].Score
		}
		if head[i].DocumentID != head[j].DocumentID {
			return head[i].DocumentID < head[j].DocumentID
		}
		if head[i].Ordinal != head[j].Ordinal {
			return head[i].Ordinal < head[j].Ordinal
		}
		return head[i].ChunkID < head[j].ChunkID
	})

	if top := head[0].Score; top > 0 {
		for i := range head {
			head[i].Score /= top
		}
	}
	return out
}

func tokenSet(text string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if len(token) < 2 {
			continue
		}
		set[token] = struct{}{}
	}
	return set
}

// tokenOverlap is the share of query tokens present in the chunk.
func tokenOverlap(queryTokens, chunkTokens map[string]struct{}) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	hits := 0
	for token := range queryTokens {
		if _, ok := chunkTokens[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}
