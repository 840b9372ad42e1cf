package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

func TestApplyBundleRejectsEmptyVersion(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &RuleRepository{db: db}

	err = repo.ApplyBundle(context.Background(), domain.RuleBundle{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestApplyBundleRollsBackWhenRuleInsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &RuleRepository{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rule_versions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO rules").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err = repo.ApplyBundle(context.Background(), domain.RuleBundle{
		Version:    "2024.07",
		ReleasedAt: time.Now(),
		Rules:      []domain.Rule{{ID: "rule-36-4", Name: "Rule 36(4)"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLatestVersionUnavailableWhenNoBundle(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &RuleRepository{db: db}

	mock.ExpectQuery("SELECT version, changelog").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.LatestVersion(context.Background())
	if !domain.IsKind(err, domain.ErrRuleUnavailable) {
		t.Fatalf("expected ErrRuleUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRuleUnavailableWhenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &RuleRepository{db: db}

	mock.ExpectQuery("SELECT r.id, r.version").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetRule(context.Background(), "nope")
	if !domain.IsKind(err, domain.ErrRuleUnavailable) {
		t.Fatalf("expected ErrRuleUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
