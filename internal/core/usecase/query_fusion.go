package usecase

import (
	"sort"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type fusedCandidate struct {
	chunk   domain.RetrievedChunk
	score   float64
	lexical bool
}

// fuseCandidatesRRF merges the two ranked lists with reciprocal rank
// fusion and normalizes scores into [0,1] against the best attainable
// fused score. Deterministic: equal scores break on lexical presence,
// then chunk id.
func fuseCandidatesRRF(semantic, lexical []domain.RetrievedChunk, rrfK int) []domain.RetrievedChunk {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(semantic)+len(lexical))
	addList := func(chunks []domain.RetrievedChunk, markLexical bool) {
		for rank, chunk := range chunks {
			candidate, seen := acc[chunk.ChunkID]
			if !seen {
				candidate.chunk = chunk
			}
			candidate.score += 1.0 / float64(rrfK+rank+1)
			candidate.lexical = candidate.lexical || markLexical
			acc[chunk.ChunkID] = candidate
		}
	}

	addList(semantic, false)
	addList(lexical, true)

	// Best case: rank 1 in both lists.
	maxScore := 2.0 / float64(rrfK+1)

	out := make([]domain.RetrievedChunk, 0, len(acc))
	for _, c := range acc {
		chunk := c.chunk
		chunk.Score = c.score / maxScore
		chunk.Lexical = c.lexical
		out = append(out, chunk)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Lexical != out[j].Lexical {
			return out[i].Lexical
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	return out
}

func trimCandidates(chunks []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}
