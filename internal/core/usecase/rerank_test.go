package usecase

import (
	"testing"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

func rerankChunk(id, text string, score float64) domain.RetrievedChunk {
	return domain.RetrievedChunk{ChunkID: id, DocumentID: "doc-1", Text: text, Score: score}
}

func TestRerankPromotesQueryTokenOverlap(t *testing.T) {
	fused := []domain.RetrievedChunk{
		rerankChunk("c1", "monthly payroll register for staff", 0.95),
		rerankChunk("c2", "blocked credit on food and beverages under section 17(5)", 0.90),
		rerankChunk("c3", "vendor master data", 0.40),
	}

	got := rerankCandidates("blocked credit food beverages", fused, 3)
	if got[0].ChunkID != "c2" {
		t.Fatalf("top = %s, want c2 promoted by token overlap", got[0].ChunkID)
	}
	if got[0].Score != 1 {
		t.Fatalf("top score = %v, want 1 after rescale", got[0].Score)
	}
}

func TestRerankLeavesTailUntouched(t *testing.T) {
	fused := []domain.RetrievedChunk{
		rerankChunk("c1", "input tax credit eligibility", 0.9),
		rerankChunk("c2", "reverse charge on imports", 0.8),
		rerankChunk("c3", "tail chunk", 0.2),
	}

	got := rerankCandidates("input tax credit", fused, 2)
	if len(got) != 3 {
		t.Fatalf("len = %d, want full list back", len(got))
	}
	if got[2].ChunkID != "c3" || got[2].Score != 0.2 {
		t.Fatalf("tail modified: %+v", got[2])
	}
}

func TestRerankEmptyAndOversizedWindow(t *testing.T) {
	if got := rerankCandidates("query", nil, 5); got != nil {
		t.Fatalf("nil input should pass through, got %v", got)
	}

	fused := []domain.RetrievedChunk{rerankChunk("c1", "only one", 0.5)}
	got := rerankCandidates("one", fused, 100)
	if len(got) != 1 || got[0].Score != 1 {
		t.Fatalf("single candidate should score 1, got %+v", got)
	}
}

func TestTokenSetDropsShortAndNonAlnum(t *testing.T) {
	set := tokenSet("ITC on M/s. Acme-Traders (2024)!")
	for _, want := range []string{"itc", "on", "acme", "traders", "2024"} {
		if _, ok := set[want]; !ok {
			t.Fatalf("token %q missing from %v", want, set)
		}
	}
	if _, ok := set["m"]; ok {
		t.Fatal("single-rune token should be dropped")
	}
}

func TestTokenOverlapShare(t *testing.T) {
	query := tokenSet("blocked credit food")
	chunk := tokenSet("credit notes for food vendors")
	if got := tokenOverlap(query, chunk); got < 0.65 || got > 0.68 {
		t.Fatalf("overlap = %v, want 2/3", got)
	}
	if got := tokenOverlap(map[string]struct{}{}, chunk); got != 0 {
		t.Fatalf("empty query overlap = %v, want 0", got)
	}
}
