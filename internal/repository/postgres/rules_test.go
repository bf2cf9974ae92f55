package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/rules"
)

func TestCreateRuleDuplicateActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO scoring_rules").
		WillReturnError(&pq.Error{Code: "23505"})

	repo := NewRuleRepo(db)
	_, err = repo.Create(context.Background(), &domain.ScoringRule{
		OrganizationID: "org1", Name: "Open", EventType: domain.EventEmailOpen,
		Points: 5, Active: true,
	})
	if !errors.Is(err, rules.ErrDuplicateActive) {
		t.Errorf("err = %v, want ErrDuplicateActive", err)
	}
}

func TestCreateRuleAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO scoring_rules").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRuleRepo(db)
	id, err := repo.Create(context.Background(), &domain.ScoringRule{
		OrganizationID: "org1", Name: "Open", EventType: domain.EventEmailOpen,
		Points: 5, Active: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Error("expected a generated rule ID")
	}
}

func TestGetRuleNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM scoring_rules").
		WithArgs("missing", "org1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewRuleRepo(db)
	if _, err := repo.Get(context.Background(), "org1", "missing"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateRuleBuildsPartialSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	points := 10
	mock.ExpectExec("UPDATE scoring_rules SET points").
		WithArgs(10, "r1", "org1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRuleRepo(db)
	if err := repo.Update(context.Background(), "org1", "r1", rules.UpdateFields{Points: &points}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUpdateRuleNoFieldsIsNoop(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewRuleRepo(db)
	if err := repo.Update(context.Background(), "org1", "r1", rules.UpdateFields{}); err != nil {
		t.Errorf("empty update should be a no-op, got %v", err)
	}
}

func TestDeactivateRuleNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE scoring_rules SET active = false").
		WithArgs("missing", "org1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRuleRepo(db)
	if err := repo.Deactivate(context.Background(), "org1", "missing"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
