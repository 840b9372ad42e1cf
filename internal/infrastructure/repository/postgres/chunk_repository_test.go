package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

func TestReplaceChunksIsTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &ChunkRepository{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("c-0", "doc-1", 0, "first", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("c-1", "doc-1", 1, "second", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.ReplaceChunks(context.Background(), "doc-1", []domain.Chunk{
		{ID: "c-0", Ordinal: 0, Text: "first", Embedding: []float32{0.1, 0.2}},
		{ID: "c-1", Ordinal: 1, Text: "second", Embedding: []float32{0.3, 0.4}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceChunksRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &ChunkRepository{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = repo.ReplaceChunks(context.Background(), "doc-1", []domain.Chunk{
		{ID: "c-0", Ordinal: 0, Text: "first"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 0, 3.75}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("value %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors = %v, want 1", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors = %v, want 0", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Fatalf("mismatched lengths = %v, want 0", got)
	}
}

func TestSearchSemanticAppliesFilterAndLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &ChunkRepository{db: db}

	rows := sqlmock.NewRows([]string{"id", "document_id", "ordinal", "chunk_text", "embedding", "doc_type", "category", "period"}).
		AddRow("c-1", "doc-1", 0, "invoice text", encodeVector([]float32{1, 0}), "invoice", "gst", "2024-07").
		AddRow("c-2", "doc-1", 1, "other text", encodeVector([]float32{0, 1}), "invoice", "gst", "2024-07")

	mock.ExpectQuery("SELECT c.id, c.document_id").
		WithArgs("owner-1", "2024-07").
		WillReturnRows(rows)

	got, err := repo.SearchSemantic(context.Background(), []float32{1, 0}, 1, domain.SearchFilter{
		OwnerID: "owner-1",
		Period:  "2024-07",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (limit)", len(got))
	}
	if got[0].ChunkID != "c-1" {
		t.Fatalf("best chunk = %s, want c-1", got[0].ChunkID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
