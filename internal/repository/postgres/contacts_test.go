package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestProfileMissingContact(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WithArgs("c1", "org1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewContactRepo(db)
	c, err := repo.Profile(context.Background(), "org1", "c1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if c != nil {
		t.Errorf("contact = %+v, want nil for missing row", c)
	}
}

func TestProfileParsesCustomFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WithArgs("c1", "org1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "email", "first_name", "last_name",
			"phone", "country", "custom_fields", "subscribed", "created_at", "updated_at",
		}).AddRow("c1", "org1", "jane@example.com", "Jane", "Doe",
			"", "US", []byte(`{"company":"Acme","role":"VP"}`), true, now, now))

	repo := NewContactRepo(db)
	c, err := repo.Profile(context.Background(), "org1", "c1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if c.Email != "jane@example.com" || !c.Subscribed {
		t.Errorf("contact = %+v", c)
	}
	if len(c.CustomFields) != 2 {
		t.Errorf("custom fields = %v, want 2 entries", c.CustomFields)
	}
}
