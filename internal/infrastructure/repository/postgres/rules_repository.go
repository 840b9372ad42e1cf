package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// ApplyBundle installs a rule bundle atomically: the version row and all
// rules land in one transaction, or none do.
func (r *RuleRepository) ApplyBundle(ctx context.Context, bundle domain.RuleBundle) error {
	if bundle.Version == "" {
		return domain.WrapError(domain.ErrInvalidInput, "apply bundle", errors.New("empty version"))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bundle tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO rule_versions (version, changelog, released_at, rules_count)
VALUES ($1,$2,$3,$4)
`, bundle.Version, bundle.Changelog, bundle.ReleasedAt, len(bundle.Rules))
	if err != nil {
		return fmt.Errorf("insert rule version: %w", err)
	}

	for _, rule := range bundle.Rules {
		logicJSON, err := json.Marshal(rule.Logic)
		if err != nil {
			return fmt.Errorf("marshal rule logic %s: %w", rule.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO rules (id, version, name, rule_text, citation, category, effective_from, effective_to, active, logic)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			rule.ID, bundle.Version, rule.Name, rule.Text, rule.Citation, rule.Category,
			rule.EffectiveFrom, nullableTime(rule.EffectiveTo), rule.Active, logicJSON,
		)
		if err != nil {
			return fmt.Errorf("insert rule %s: %w", rule.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bundle tx: %w", err)
	}
	return nil
}

const ruleColumns = `r.id, r.version, r.name, r.rule_text, r.citation, r.category, r.effective_from, r.effective_to, r.active, r.logic`

// ActiveRules returns the active rules of the latest installed version.
func (r *RuleRepository) ActiveRules(ctx context.Context) ([]domain.Rule, error) {
	latest, err := r.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+ruleColumns+`
FROM rules r
WHERE r.version = $1 AND r.active
ORDER BY r.id
`, latest.Version)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

// GetRule returns the latest-version row for a rule id.
func (r *RuleRepository) GetRule(ctx context.Context, ruleID string) (*domain.Rule, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+ruleColumns+`
FROM rules r
JOIN rule_versions v ON v.version = r.version
WHERE r.id = $1
ORDER BY v.released_at DESC
LIMIT 1
`, ruleID)

	rule, err := scanRule(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRuleUnavailable, "get rule", fmt.Errorf("id %s", ruleID))
		}
		return nil, err
	}
	return rule, nil
}

func (r *RuleRepository) ListVersions(ctx context.Context) ([]domain.RuleVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT version, changelog, released_at, rules_count
FROM rule_versions
ORDER BY released_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query rule versions: %w", err)
	}
	defer rows.Close()

	var out []domain.RuleVersion
	for rows.Next() {
		var v domain.RuleVersion
		if err := rows.Scan(&v.Version, &v.Changelog, &v.ReleasedAt, &v.RulesCount); err != nil {
			return nil, fmt.Errorf("scan rule version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule versions: %w", err)
	}
	return out, nil
}

func (r *RuleRepository) LatestVersion(ctx context.Context) (*domain.RuleVersion, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT version, changelog, released_at, rules_count
FROM rule_versions
ORDER BY released_at DESC
LIMIT 1
`)

	var v domain.RuleVersion
	if err := row.Scan(&v.Version, &v.Changelog, &v.ReleasedAt, &v.RulesCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRuleUnavailable, "latest rule version", errors.New("no rule bundle installed"))
		}
		return nil, fmt.Errorf("scan latest version: %w", err)
	}
	return &v, nil
}

func scanRule(scan func(...any) error) (*domain.Rule, error) {
	var rule domain.Rule
	var logicRaw []byte
	var from, to sql.NullTime

	err := scan(
		&rule.ID, &rule.Version, &rule.Name, &rule.Text, &rule.Citation, &rule.Category,
		&from, &to, &rule.Active, &logicRaw,
	)
	if err != nil {
		return nil, err
	}
	if from.Valid {
		rule.EffectiveFrom = from.Time
	}
	if to.Valid {
		rule.EffectiveTo = &to.Time
	}
	if err := json.Unmarshal(logicRaw, &rule.Logic); err != nil {
		return nil, fmt.Errorf("unmarshal rule logic %s: %w", rule.ID, err)
	}
	return &rule, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
