package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

// AuditRepository is insert-only. No update or delete methods exist so
// the audit trail cannot be rewritten through this code path.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	paramsJSON, err := json.Marshal(entry.Params)
	if err != nil {
		return fmt.Errorf("marshal audit params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_entries (id, ts, request_id, tool, params, result_size, violation, reason)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		entry.ID, entry.Timestamp, entry.RequestID, entry.Tool, paramsJSON,
		entry.ResultSize, entry.Violation, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, ts, request_id, tool, params, result_size, violation, reason
FROM audit_entries
ORDER BY ts DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var paramsRaw []byte
		err := rows.Scan(
			&entry.ID, &entry.Timestamp, &entry.RequestID, &entry.Tool,
			&paramsRaw, &entry.ResultSize, &entry.Violation, &entry.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal(paramsRaw, &entry.Params); err != nil {
			return nil, fmt.Errorf("unmarshal audit params: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
