package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/suppression"
)

func TestIsSuppressed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewSuppressionRepo(db)
	got, err := repo.IsSuppressed(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("IsSuppressed: %v", err)
	}
	if !got {
		t.Error("expected suppressed")
	}
}

func TestSuppressUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO suppressions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSuppressionRepo(db)
	entry := &domain.Suppression{Email: "user@example.com", Reason: domain.SuppressBounce}
	if err := repo.Suppress(context.Background(), entry); err != nil {
		t.Fatalf("Suppress: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected a generated suppression ID")
	}
}

func TestRemoveNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE suppressions SET active = false").
		WithArgs("ghost@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSuppressionRepo(db)
	if err := repo.Remove(context.Background(), "ghost@example.com"); !errors.Is(err, suppression.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
