package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026021001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_ref TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	doc_type TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	subcategory TEXT NOT NULL DEFAULT '',
	period TEXT NOT NULL DEFAULT 'unknown',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_owner_hash ON documents(owner_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	ordinal INT NOT NULL,
	chunk_text TEXT NOT NULL,
	embedding BYTEA NOT NULL,
	UNIQUE (document_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_fts ON chunks USING GIN (to_tsvector('english', chunk_text));

CREATE TABLE IF NOT EXISTS invoice_records (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	owner_id TEXT NOT NULL,
	dataset TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	vendor_gstin TEXT NOT NULL DEFAULT '',
	recipient_gstin TEXT NOT NULL DEFAULT '',
	invoice_date TIMESTAMPTZ,
	period TEXT NOT NULL DEFAULT 'unknown',
	category TEXT NOT NULL DEFAULT '',
	hsn_code TEXT NOT NULL DEFAULT '',
	taxable_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	tax_amount DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_records_owner_dataset ON invoice_records(owner_id, dataset, period);
CREATE INDEX IF NOT EXISTS idx_records_number ON invoice_records(owner_id, invoice_number);

CREATE TABLE IF NOT EXISTS rule_versions (
	version TEXT PRIMARY KEY,
	changelog TEXT NOT NULL DEFAULT '',
	released_at TIMESTAMPTZ NOT NULL,
	rules_count INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rules (
	id TEXT NOT NULL,
	version TEXT NOT NULL REFERENCES rule_versions(version),
	name TEXT NOT NULL,
	rule_text TEXT NOT NULL,
	citation TEXT NOT NULL,
	category TEXT NOT NULL,
	effective_from TIMESTAMPTZ,
	effective_to TIMESTAMPTZ,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	logic JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rules_version ON rules(version);

CREATE TABLE IF NOT EXISTS audit_entries (
	id TEXT PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	request_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	params JSONB NOT NULL DEFAULT '{}'::jsonb,
	result_size INT NOT NULL DEFAULT 0,
	violation BOOLEAN NOT NULL DEFAULT FALSE,
	reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_entries(ts DESC);

CREATE TABLE IF NOT EXISTS working_papers (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	period TEXT NOT NULL,
	rule_version TEXT NOT NULL DEFAULT '',
	generated_at TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, owner_id, filename, mime_type, storage_ref, content_hash, doc_type, category, subcategory, period, confidence, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		doc.ID, doc.OwnerID, doc.Filename, doc.MimeType, doc.StorageRef, doc.ContentHash,
		string(doc.Type), doc.Category, doc.Subcategory, doc.Period, doc.Confidence,
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, owner_id, filename, mime_type, storage_ref, content_hash, doc_type, category, subcategory, period, confidence, status, error_message, created_at, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// GetByContentHash backs ingestion dedup: same owner, same bytes.
func (r *DocumentRepository) GetByContentHash(ctx context.Context, ownerID, contentHash string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id = $1 AND content_hash = $2
ORDER BY created_at
LIMIT 1
`, ownerID, contentHash)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document by hash", fmt.Errorf("owner %s", ownerID))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var docType, status string

	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.MimeType, &doc.StorageRef, &doc.ContentHash,
		&docType, &doc.Category, &doc.Subcategory, &doc.Period, &doc.Confidence,
		&status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Type = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRowAffected(res, "update document status", id)
}

func (r *DocumentRepository) SaveClassification(ctx context.Context, id string, cls domain.Classification) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET doc_type = $2, category = $3, subcategory = $4, period = $5, confidence = $6, updated_at = $7
WHERE id = $1
`, id, string(cls.Type), cls.Category, cls.Subcategory, cls.Period, cls.Confidence, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return requireRowAffected(res, "save classification", id)
}

func requireRowAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %s", id))
	}
	return nil
}
