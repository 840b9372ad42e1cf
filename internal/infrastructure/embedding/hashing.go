// Package embedding provides the chunk embedders behind the indexing
// pipeline. The default hashing embedder is fully deterministic and
// needs no model server; the remote embedder delegates to an HTTP
// embedding service when one is configured.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultDimension = 384

// HashingEmbedder projects token frequencies into a fixed-size dense
// vector via feature hashing. The same text always produces the same
// vector, so index and query stay comparable across restarts.
type HashingEmbedder struct {
	dim int
}

func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = defaultDimension
	}
	return &HashingEmbedder{dim: dim}
}

func (e *HashingEmbedder) Dimension() int {
	return e.dim
}

func (e *HashingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.encode(text)
	}
	return out, nil
}

func (e *HashingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.encode(text), nil
}

func (e *HashingEmbedder) encode(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := tokenizeAlphaNum(text)
	if len(tokens) == 0 {
		return vec
	}

	for _, token := range tokens {
		bucket, sign := hashBucket(token, e.dim)
		// Sublinear term weight so repeated boilerplate tokens do not
		// dominate the vector.
		vec[bucket] += sign
	}
	for i, v := range vec {
		if v < 0 {
			vec[i] = -float32(math.Log1p(float64(-v)))
		} else {
			vec[i] = float32(math.Log1p(float64(v)))
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// hashBucket hashes a token to a vector index plus a +-1 sign. The
// sign bit reduces hash-collision bias the usual feature-hashing way.
func hashBucket(token string, dim int) (int, float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	bucket := int(sum % uint32(dim))
	if sum&0x80000000 != 0 {
		return bucket, -1
	}
	return bucket, 1
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
