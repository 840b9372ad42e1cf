package embedding

import (
	"context"
	"math"
	"testing"
)

func TestHashingEmbedderDeterministic(t *testing.T) {
	e := NewHashingEmbedder(128)
	a, err := e.EmbedQuery(context.Background(), "input tax credit for july 2024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.EmbedQuery(context.Background(), "input tax credit for july 2024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vector differs at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashingEmbedderUnitNorm(t *testing.T) {
	e := NewHashingEmbedder(64)
	vec, err := e.EmbedQuery(context.Background(), "vendor invoice reconciliation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Fatalf("norm = %v, want 1", norm)
	}
}

func TestHashingEmbedderEmptyText(t *testing.T) {
	e := NewHashingEmbedder(32)
	vec, err := e.EmbedQuery(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 32 {
		t.Fatalf("len = %d, want 32", len(vec))
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", vec)
		}
	}
}

func TestHashingEmbedderBatchMatchesQuery(t *testing.T) {
	e := NewHashingEmbedder(64)
	batch, err := e.Embed(context.Background(), []string{"gst liability summary"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	single, err := e.EmbedQuery(context.Background(), "gst liability summary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("batch len = %d", len(batch))
	}
	for i := range single {
		if batch[0][i] != single[i] {
			t.Fatalf("batch and query embeddings diverge at %d", i)
		}
	}
}

func TestHashingEmbedderSimilarTextsCloserThanUnrelated(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()
	base, _ := e.EmbedQuery(ctx, "input tax credit blocked under rule 36")
	near, _ := e.EmbedQuery(ctx, "tax credit blocked by rule 36 conditions")
	far, _ := e.EmbedQuery(ctx, "quarterly payroll headcount report")

	if cosine(base, near) <= cosine(base, far) {
		t.Fatalf("related texts scored %v, unrelated %v", cosine(base, near), cosine(base, far))
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
