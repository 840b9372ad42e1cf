package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type WorkingPaperRepository struct {
	db *sql.DB
}

func NewWorkingPaperRepository(db *sql.DB) *WorkingPaperRepository {
	return &WorkingPaperRepository{db: db}
}

func (r *WorkingPaperRepository) Save(ctx context.Context, paper *domain.WorkingPaper) error {
	payload, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal working paper: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO working_papers (id, kind, owner_id, period, rule_version, generated_at, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		paper.ID, string(paper.Kind), paper.OwnerID, paper.Period,
		paper.RuleVersion, paper.GeneratedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("insert working paper: %w", err)
	}
	return nil
}

func (r *WorkingPaperRepository) Get(ctx context.Context, id string) (*domain.WorkingPaper, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM working_papers WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get working paper", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan working paper: %w", err)
	}

	var paper domain.WorkingPaper
	if err := json.Unmarshal(payload, &paper); err != nil {
		return nil, fmt.Errorf("unmarshal working paper: %w", err)
	}
	return &paper, nil
}
