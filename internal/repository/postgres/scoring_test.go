package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/scoring"
)

func TestActiveRuleUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM scoring_rules").
		WithArgs("org1", domain.EventEmailOpen).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewScoreRepo(db)
	_, err = repo.ActiveRule(context.Background(), "org1", domain.EventEmailOpen)
	if !errors.Is(err, scoring.ErrUnknownRule) {
		t.Errorf("err = %v, want ErrUnknownRule", err)
	}
}

func TestActiveRuleFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM scoring_rules").
		WithArgs("org1", domain.EventEmailOpen).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "name", "description", "event_type",
			"points", "cap", "decays", "active", "created_at", "updated_at",
		}).AddRow("r1", "org1", "Email Open", "", "email_open", 5, 50, true, true, now, now))

	repo := NewScoreRepo(db)
	rule, err := repo.ActiveRule(context.Background(), "org1", domain.EventEmailOpen)
	if err != nil {
		t.Fatalf("ActiveRule: %v", err)
	}
	if rule.ID != "r1" || rule.Points != 5 || rule.Cap != 50 {
		t.Errorf("rule = %+v", rule)
	}
}

func TestCurrentNoScore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM contact_scores").
		WithArgs("org1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewScoreRepo(db)
	score, err := repo.Current(context.Background(), "org1", "c1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if score != nil {
		t.Errorf("score = %+v, want nil for unscored contact", score)
	}
}

func testScoreAndEvent() (*domain.ScoreEvent, *domain.ContactScore) {
	now := time.Now().UTC()
	evt := &domain.ScoreEvent{
		ID: "e1", OrganizationID: "org1", ContactID: "c1",
		EventType: domain.EventEmailOpen, Points: 5, RunningTotal: 5,
		OccurredAt: now, CreatedAt: now,
	}
	score := &domain.ContactScore{
		ID: "s1", OrganizationID: "org1", ContactID: "c1",
		EngagementRaw: 5, EngagementScore: 5, TotalScore: 25, TotalScoreRaw: 25,
		Grade: domain.GradeD, LifecycleStage: domain.StageLead,
		ScoreUpdatedAt: now, CreatedAt: now,
	}
	return evt, score
}

func TestCommitInsertsNewScore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	evt, score := testScoreAndEvent()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO score_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO contact_scores").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewScoreRepo(db)
	if err := repo.Commit(context.Background(), evt, score); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestCommitInsertConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	evt, score := testScoreAndEvent()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO score_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// ON CONFLICT DO NOTHING touched zero rows: another writer won the race.
	mock.ExpectExec("INSERT INTO contact_scores").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewScoreRepo(db)
	if err := repo.Commit(context.Background(), evt, score); !errors.Is(err, scoring.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestCommitUpdateVersionMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	evt, score := testScoreAndEvent()
	score.Version = 3

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO score_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE contact_scores").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewScoreRepo(db)
	if err := repo.Commit(context.Background(), evt, score); !errors.Is(err, scoring.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestHistoryPagination(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("org1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("SELECT (.+) FROM score_events").
		WithArgs("org1", "c1", 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "contact_id", "rule_id", "event_type",
			"points", "running_total", "reason", "occurred_at", "created_at",
		}).
			AddRow("e2", "org1", "c1", "r1", "email_open", 5, 10, "rule: Open", now, now).
			AddRow("e1", "org1", "c1", nil, "manual_award", 5, 5, "demo", now, now))

	repo := NewScoreRepo(db)
	events, total, err := repo.History(context.Background(), "org1", "c1", 2, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 7 || len(events) != 2 {
		t.Errorf("total = %d, events = %d, want 7/2", total, len(events))
	}
	if events[0].RuleID == nil || events[1].RuleID != nil {
		t.Error("rule_id nullability not mapped")
	}
}
