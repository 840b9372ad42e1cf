package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceChunks swaps a document's chunks in one transaction so search
// never observes a half-indexed document.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO chunks (id, document_id, ordinal, chunk_text, embedding)
VALUES ($1,$2,$3,$4,$5)
`, chunk.ID, documentID, chunk.Ordinal, chunk.Text, encodeVector(chunk.Embedding))
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// SearchSemantic loads the SQL-filtered candidate set and scores it by
// cosine similarity in process. Filters narrow before ranking, so a
// period filter is a hard constraint rather than a boost.
func (r *ChunkRepository) SearchSemantic(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	where, args := filterClause(filter)
	query := fmt.Sprintf(`
SELECT c.id, c.document_id, c.ordinal, c.chunk_text, c.embedding, d.doc_type, d.category, d.period
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE %s
`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic candidate query: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievedChunk
	for rows.Next() {
		var rc domain.RetrievedChunk
		var docType string
		var embedding []byte
		if err := rows.Scan(&rc.ChunkID, &rc.DocumentID, &rc.Ordinal, &rc.Text, &embedding, &docType, &rc.Category, &rc.Period); err != nil {
			return nil, fmt.Errorf("scan semantic candidate: %w", err)
		}
		rc.Type = domain.DocumentType(docType)
		rc.Score = cosineSimilarity(queryVector, decodeVector(embedding))
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate semantic candidates: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchLexical ranks candidates with Postgres full-text search.
func (r *ChunkRepository) SearchLexical(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	where, args := filterClause(filter)
	args = append(args, query)
	queryArg := fmt.Sprintf("$%d", len(args))
	args = append(args, limit)
	limitArg := fmt.Sprintf("$%d", len(args))

	sqlQuery := fmt.Sprintf(`
SELECT c.id, c.document_id, c.ordinal, c.chunk_text, d.doc_type, d.category, d.period,
	ts_rank(to_tsvector('english', c.chunk_text), plainto_tsquery('english', %s)) AS rank
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE %s AND to_tsvector('english', c.chunk_text) @@ plainto_tsquery('english', %s)
ORDER BY rank DESC, c.id
LIMIT %s
`, queryArg, where, queryArg, limitArg)

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievedChunk
	for rows.Next() {
		var rc domain.RetrievedChunk
		var docType string
		if err := rows.Scan(&rc.ChunkID, &rc.DocumentID, &rc.Ordinal, &rc.Text, &docType, &rc.Category, &rc.Period, &rc.Score); err != nil {
			return nil, fmt.Errorf("scan lexical candidate: %w", err)
		}
		rc.Type = domain.DocumentType(docType)
		rc.Lexical = true
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical candidates: %w", err)
	}
	return out, nil
}

func filterClause(filter domain.SearchFilter) (string, []any) {
	clauses := []string{"d.status = 'indexed'"}
	var args []any

	add := func(column, value string) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.OwnerID != "" {
		add("d.owner_id", filter.OwnerID)
	}
	if filter.Type != "" {
		add("d.doc_type", string(filter.Type))
	}
	if filter.Category != "" {
		add("d.category", filter.Category)
	}
	if filter.Period != "" {
		add("d.period", filter.Period)
	}
	return strings.Join(clauses, " AND "), args
}

func encodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeVector(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
