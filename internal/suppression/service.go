// Package suppression maintains the global do-not-contact list. It gates
// outbound sends in the surrounding platform and is fed by unsubscribe
// tracking and manual entries. Suppression is deliberately outside the
// scoring math: a suppressed contact keeps their score and ledger.
package suppression

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/leadscore/internal/domain"
)

var validReasons = map[domain.SuppressionReason]bool{
	domain.SuppressBounce:      true,
	domain.SuppressComplaint:   true,
	domain.SuppressUnsubscribe: true,
	domain.SuppressManual:      true,
	domain.SuppressCompliance:  true,
}

// Service implements suppression list business logic.
type Service struct {
	repo Repository
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Check reports whether an email is actively suppressed.
func (s *Service) Check(ctx context.Context, email string) (bool, error) {
	email = normalize(email)
	if email == "" {
		return false, ErrInvalidEmail
	}
	return s.repo.IsSuppressed(ctx, email)
}

// Add upserts a suppression entry. Re-suppressing an existing email
// refreshes its reason, source and notes.
func (s *Service) Add(ctx context.Context, email string, reason domain.SuppressionReason, source, notes string) (*domain.Suppression, error) {
	email = normalize(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if !validReasons[reason] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}

	entry := &domain.Suppression{
		ID:     uuid.New().String(),
		Email:  email,
		Reason: reason,
		Source: source,
		Notes:  notes,
		Active: true,
	}
	if err := s.repo.Suppress(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Remove deactivates a suppression entry.
func (s *Service) Remove(ctx context.Context, email string) error {
	email = normalize(email)
	if email == "" {
		return ErrInvalidEmail
	}
	return s.repo.Remove(ctx, email)
}

// List returns active suppression entries.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Suppression, int, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	return s.repo.List(ctx, f)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
