// Package rules manages the scoring rule store: which engagement event
// types award points, how many, and under what cap. Rules are pure data;
// the calculator consumes them as a lookup structure, never as process
// state. Deactivation is always soft so historical ledger entries keep a
// valid event-type reference.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/leadscore/internal/domain"
)

// Service implements rule store business logic.
type Service struct {
	repo Repository
}

// NewService creates a rule service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single rule.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.ScoringRule, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns the organization's rules.
func (s *Service) List(ctx context.Context, orgID string, includeInactive bool) ([]domain.ScoringRule, error) {
	return s.repo.List(ctx, orgID, includeInactive)
}

// Create validates and persists a new active rule.
func (s *Service) Create(ctx context.Context, orgID string, input CreateInput) (*domain.ScoringRule, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.EventType == "" {
		return nil, fmt.Errorf("event_type is required")
	}
	t := domain.ScoreEventType(input.EventType)
	if t.Reserved() {
		return nil, fmt.Errorf("%w: %s", ErrReservedType, input.EventType)
	}
	if input.Cap < 0 {
		return nil, fmt.Errorf("cap must be >= 0 (0 = unlimited)")
	}

	// Fast pre-check; the partial unique index is the real guarantee.
	if _, err := s.repo.ActiveByEventType(ctx, orgID, t); err == nil {
		return nil, ErrDuplicateActive
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	r := &domain.ScoringRule{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           input.Name,
		Description:    input.Description,
		EventType:      t,
		Points:         input.Points,
		Cap:            input.Cap,
		Decays:         input.Decays,
		Active:         true,
	}

	id, err := s.repo.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	r.ID = id
	return r, nil
}

// Update modifies mutable rule fields. The event type of a rule is fixed
// for life; deactivate and create a new rule to rebind a type.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) error {
	if u.Cap != nil && *u.Cap < 0 {
		return fmt.Errorf("cap must be >= 0 (0 = unlimited)")
	}
	return s.repo.Update(ctx, orgID, id, u)
}

// Deactivate soft-disables a rule. Ledger entries referencing its event
// type remain valid.
func (s *Service) Deactivate(ctx context.Context, orgID, id string) error {
	return s.repo.Deactivate(ctx, orgID, id)
}

// CreateInput holds the fields for creating a new scoring rule.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EventType   string `json:"event_type"`
	Points      int    `json:"points"`
	Cap         int    `json:"cap"`
	Decays      bool   `json:"decays"`
}
