package config

import "testing"

func TestLoadIncludesSearchDefaults(t *testing.T) {
	t.Setenv("SEARCH_MAX_LIMIT", "")
	t.Setenv("SEARCH_HYBRID_CANDIDATES", "")
	t.Setenv("SEARCH_FUSION_RRF_K", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")

	cfg := Load()
	if cfg.SearchMaxLimit != 20 {
		t.Fatalf("expected default search max limit 20, got %d", cfg.SearchMaxLimit)
	}
	if cfg.HybridCandidates != 30 {
		t.Fatalf("expected default hybrid candidates 30, got %d", cfg.HybridCandidates)
	}
	if cfg.FusionRRFK != 60 {
		t.Fatalf("expected default fusion rrf k 60, got %d", cfg.FusionRRFK)
	}
	if cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 {
		t.Fatalf("expected default chunking 500/50, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("OCR_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("RECON_FUZZY_THRESHOLD", "0.9")
	t.Setenv("FIREWALL_MAX_LIMIT", "10")
	t.Setenv("INGEST_MAX_ATTEMPTS", "5")

	cfg := Load()
	if cfg.OCRConfidenceThreshold != 0.75 {
		t.Fatalf("expected ocr threshold 0.75, got %v", cfg.OCRConfidenceThreshold)
	}
	if cfg.FuzzyThreshold != 0.9 {
		t.Fatalf("expected fuzzy threshold 0.9, got %v", cfg.FuzzyThreshold)
	}
	if cfg.FirewallMaxLimit != 10 {
		t.Fatalf("expected firewall max limit 10, got %d", cfg.FirewallMaxLimit)
	}
	if cfg.IngestMaxAttempts != 5 {
		t.Fatalf("expected ingest max attempts 5, got %d", cfg.IngestMaxAttempts)
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("RECON_AMOUNT_TOLERANCE", "also-not")

	cfg := Load()
	if cfg.ChunkSize != 500 {
		t.Fatalf("expected fallback chunk size 500, got %d", cfg.ChunkSize)
	}
	if cfg.AmountTolerance != 0.01 {
		t.Fatalf("expected fallback amount tolerance 0.01, got %v", cfg.AmountTolerance)
	}
}
