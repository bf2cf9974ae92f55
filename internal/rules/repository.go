package rules

import (
	"context"

	"github.com/ignite/leadscore/internal/domain"
)

// Repository defines the data access contract for scoring rules.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single rule. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.ScoringRule, error)

	// List returns rules for the organization, active first, newest first
	// within each group. includeInactive controls whether deactivated
	// rules appear.
	List(ctx context.Context, orgID string, includeInactive bool) ([]domain.ScoringRule, error)

	// ActiveByEventType returns the active rule for an event type, or
	// ErrNotFound if none is active.
	ActiveByEventType(ctx context.Context, orgID string, t domain.ScoreEventType) (*domain.ScoringRule, error)

	// Create inserts a new rule and returns its ID. The database enforces
	// at most one active rule per event type; a violation surfaces as
	// ErrDuplicateActive.
	Create(ctx context.Context, r *domain.ScoringRule) (string, error)

	// Update modifies a rule. Only non-nil fields are applied.
	Update(ctx context.Context, orgID, id string, u UpdateFields) error

	// Deactivate soft-disables a rule. Rules are never hard-deleted while
	// ledger entries reference their event type.
	Deactivate(ctx context.Context, orgID, id string) error
}

// UpdateFields holds the mutable fields for a rule update.
// Nil fields are not applied.
type UpdateFields struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Points      *int    `json:"points"`
	Cap         *int    `json:"cap"`
	Decays      *bool   `json:"decays"`
}
