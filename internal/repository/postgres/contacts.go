package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/leadscore/internal/domain"
)

// ContactRepo reads contact profile snapshots for the score calculator.
// It implements scoring.ProfileProvider and never writes: contact records
// are owned by the contact CRUD layer of the surrounding platform.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact snapshot provider.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

func (r *ContactRepo) Profile(ctx context.Context, orgID, contactID string) (*domain.Contact, error) {
	c := &domain.Contact{}
	var customJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, email, COALESCE(first_name,''),
		       COALESCE(last_name,''), COALESCE(phone,''), COALESCE(country,''),
		       COALESCE(custom_fields,'{}'), subscribed, created_at, updated_at
		FROM contacts
		WHERE id = $1 AND organization_id = $2
	`, contactID, orgID).Scan(
		&c.ID, &c.OrganizationID, &c.Email, &c.FirstName, &c.LastName,
		&c.Phone, &c.Country, &customJSON, &c.Subscribed, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		// Unknown contact scores as an empty profile; the tracking pipeline
		// must not fail because a contact row lagged behind an event.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("contact profile: %w", err)
	}

	if len(customJSON) > 0 {
		if err := json.Unmarshal(customJSON, &c.CustomFields); err != nil {
			c.CustomFields = nil
		}
	}
	return c, nil
}
