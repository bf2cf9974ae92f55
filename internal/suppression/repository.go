package suppression

import (
	"context"

	"github.com/ignite/leadscore/internal/domain"
)

// Repository defines the data access contract for the suppression list.
// Implementations must be safe for concurrent use.
type Repository interface {
	// IsSuppressed reports whether an email has an active suppression.
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// Suppress upserts an active suppression entry.
	Suppress(ctx context.Context, s *domain.Suppression) error

	// Remove deactivates a suppression. Returns ErrNotFound if no active
	// entry exists.
	Remove(ctx context.Context, email string) error

	// List returns active suppressions, newest first, with the total count.
	List(ctx context.Context, f ListFilter) ([]domain.Suppression, int, error)
}

// ListFilter controls suppression list pagination and filtering.
type ListFilter struct {
	Reason domain.SuppressionReason // "" = all reasons
	Limit  int
	Offset int
}
