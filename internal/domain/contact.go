package domain

import "time"

// Contact is the profile snapshot the score calculator consumes. The scoring
// engine treats contact records as read-only input supplied by the contact
// data layer; it never mutates them.
type Contact struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	Email          string         `json:"email" db:"email"`
	FirstName      string         `json:"first_name" db:"first_name"`
	LastName       string         `json:"last_name" db:"last_name"`
	Phone          string         `json:"phone" db:"phone"`
	Country        string         `json:"country" db:"country"`
	CustomFields   map[string]any `json:"custom_fields" db:"custom_fields"`
	Subscribed     bool           `json:"subscribed" db:"subscribed"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}
