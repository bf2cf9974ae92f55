package scoring

import (
	"context"

	"github.com/ignite/leadscore/internal/domain"
)

// Repository defines the data access contract for the scoring engine.
// Implementations must be safe for concurrent use.
type Repository interface {
	// ActiveRule returns the single active rule for an event type.
	// Returns ErrUnknownRule if none is active.
	ActiveRule(ctx context.Context, orgID string, t domain.ScoreEventType) (*domain.ScoringRule, error)

	// ActiveRules returns all active rules keyed by event type.
	ActiveRules(ctx context.Context, orgID string) (map[domain.ScoreEventType]domain.ScoringRule, error)

	// Ledger returns the full scoring ledger for a contact, ordered by
	// occurred_at ascending.
	Ledger(ctx context.Context, orgID, contactID string) ([]domain.ScoreEvent, error)

	// Current returns the persisted score for a contact, or (nil, nil) if
	// the contact has never been scored.
	Current(ctx context.Context, orgID, contactID string) (*domain.ContactScore, error)

	// Commit appends the ledger event and upserts the score in a single
	// transaction. score.Version is the version the caller read (0 for a
	// new row); a mismatch returns ErrConflict and writes nothing.
	Commit(ctx context.Context, evt *domain.ScoreEvent, score *domain.ContactScore) error
}

// ProfileProvider supplies the current profile snapshot for a contact.
// The engine treats it as read-only input. A (nil, nil) return is treated
// as an empty profile.
type ProfileProvider interface {
	Profile(ctx context.Context, orgID, contactID string) (*domain.Contact, error)
}
