package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/pkg/logger"
)

// Engine applies scoring actions and keeps contact_scores consistent with
// the ledger. All public methods are safe for concurrent use; mutations for
// the same contact are serialized, distinct contacts proceed in parallel.
type Engine struct {
	repo     Repository
	profiles ProfileProvider
	locks    *keyedMutex
	now      func() time.Time
}

// NewEngine creates a scoring engine backed by the given repository and
// profile provider.
func NewEngine(repo Repository, profiles ProfileProvider) *Engine {
	return &Engine{
		repo:     repo,
		profiles: profiles,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ApplyEvent records one engagement event for a contact and recomputes the
// score. If the event type has no active rule it returns ErrUnknownRule and
// writes nothing. If the rule's cap is already exhausted the event is still
// recorded with a zero delta so the audit trail shows the attempt.
func (e *Engine) ApplyEvent(ctx context.Context, orgID, contactID string, eventType domain.ScoreEventType, occurredAt time.Time) (*domain.ContactScore, error) {
	if eventType.Reserved() {
		return nil, fmt.Errorf("%w: %q is reserved for the engine", ErrValidation, eventType)
	}
	now := e.now()
	if occurredAt.IsZero() {
		occurredAt = now
	}

	unlock := e.locks.Lock(orgID + "/" + contactID)
	defer unlock()

	rule, err := e.repo.ActiveRule(ctx, orgID, eventType)
	if err != nil {
		// Override events force a stage with or without a rule attached.
		if !(eventType.Override() && errors.Is(err, ErrUnknownRule)) {
			return nil, err
		}
	}

	st, err := e.loadState(ctx, orgID, contactID)
	if err != nil {
		return nil, err
	}

	delta := 0
	reason := ""
	var ruleID *string
	if rule != nil {
		delta = rule.Points
		if rule.Cap > 0 && st.typeSum(eventType) >= rule.Cap {
			delta = 0 // cap exhausted; record the attempt anyway
		}
		id := rule.ID
		ruleID = &id
		reason = fmt.Sprintf("rule: %s", rule.Name)
	}

	evt := &domain.ScoreEvent{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		ContactID:      contactID,
		RuleID:         ruleID,
		EventType:      eventType,
		Points:         delta,
		RunningTotal:   st.ledgerSum() + delta,
		Reason:         reason,
		OccurredAt:     occurredAt,
		CreatedAt:      now,
	}

	score, err := e.commit(ctx, st, evt, now)
	if err != nil {
		return nil, err
	}
	logger.Debug("score event applied",
		"contact_id", contactID, "event_type", string(eventType),
		"delta", delta, "total", score.TotalScore)
	return score, nil
}

// AwardManual records a manual point adjustment. A non-empty reason is
// required and the delta must be non-zero; manual adjustments bypass all
// rule caps.
func (e *Engine) AwardManual(ctx context.Context, orgID, contactID string, delta int, reason string) (*domain.ContactScore, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: points delta must be non-zero", ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required for manual adjustments", ErrValidation)
	}

	eventType := domain.EventManualAward
	if delta < 0 {
		eventType = domain.EventManualDeduction
	}
	now := e.now()

	unlock := e.locks.Lock(orgID + "/" + contactID)
	defer unlock()

	st, err := e.loadState(ctx, orgID, contactID)
	if err != nil {
		return nil, err
	}

	evt := &domain.ScoreEvent{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		ContactID:      contactID,
		EventType:      eventType,
		Points:         delta,
		RunningTotal:   st.ledgerSum() + delta,
		Reason:         reason,
		OccurredAt:     now,
		CreatedAt:      now,
	}

	return e.commit(ctx, st, evt, now)
}

// Recalculate rebuilds the score from the full ledger and the current
// profile snapshot. It is not a scoring action: no points move, but a
// zero-delta audit row of type "recalculation" is recorded capturing the
// resulting total. Used after profile changes or to refresh recency decay.
func (e *Engine) Recalculate(ctx context.Context, orgID, contactID string) (*domain.ContactScore, error) {
	now := e.now()

	unlock := e.locks.Lock(orgID + "/" + contactID)
	defer unlock()

	st, err := e.loadState(ctx, orgID, contactID)
	if err != nil {
		return nil, err
	}

	result := Calculate(Snapshot{
		Events:       st.ledger,
		Rules:        st.rules,
		Contact:      st.contact,
		CurrentStage: st.currentStage(),
		Now:          now,
	})

	evt := &domain.ScoreEvent{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		ContactID:      contactID,
		EventType:      domain.EventRecalculation,
		Points:         0,
		RunningTotal:   st.ledgerSum(),
		Reason:         fmt.Sprintf("recalculated: total=%d grade=%s stage=%s", result.Total, result.Grade, result.Stage),
		OccurredAt:     now,
		CreatedAt:      now,
	}

	score := st.buildScore(orgID, contactID, result, now)
	if err := e.repo.Commit(ctx, evt, score); err != nil {
		return nil, err
	}
	return score, nil
}

// contactState is everything read under the per-contact lock.
type contactState struct {
	ledger  []domain.ScoreEvent
	rules   map[domain.ScoreEventType]domain.ScoringRule
	current *domain.ContactScore
	contact *domain.Contact
}

func (e *Engine) loadState(ctx context.Context, orgID, contactID string) (*contactState, error) {
	ledger, err := e.repo.Ledger(ctx, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	rules, err := e.repo.ActiveRules(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	current, err := e.repo.Current(ctx, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("load score: %w", err)
	}
	contact, err := e.profiles.Profile(ctx, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &contactState{ledger: ledger, rules: rules, current: current, contact: contact}, nil
}

// commit appends evt, recomputes over the extended ledger, and persists
// both in one transaction.
func (e *Engine) commit(ctx context.Context, st *contactState, evt *domain.ScoreEvent, now time.Time) (*domain.ContactScore, error) {
	events := append(st.ledger, *evt)

	result := Calculate(Snapshot{
		Events:       events,
		Rules:        st.rules,
		Contact:      st.contact,
		CurrentStage: st.currentStage(),
		Now:          now,
	})

	score := st.buildScore(evt.OrganizationID, evt.ContactID, result, now)
	if err := e.repo.Commit(ctx, evt, score); err != nil {
		return nil, err
	}
	return score, nil
}

func (st *contactState) currentStage() domain.LifecycleStage {
	if st.current == nil {
		return domain.StageSubscriber
	}
	return st.current.LifecycleStage
}

// typeSum is the signed ledger sum attributed to one event type.
func (st *contactState) typeSum(t domain.ScoreEventType) int {
	sum := 0
	for _, e := range st.ledger {
		if e.EventType == t {
			sum += e.Points
		}
	}
	return sum
}

// ledgerSum is the signed sum of every delta in the ledger.
func (st *contactState) ledgerSum() int {
	sum := 0
	for _, e := range st.ledger {
		sum += e.Points
	}
	return sum
}

func (st *contactState) buildScore(orgID, contactID string, r Result, now time.Time) *domain.ContactScore {
	score := &domain.ContactScore{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		ContactID:      contactID,
		CreatedAt:      now,
	}
	if st.current != nil {
		score.ID = st.current.ID
		score.Version = st.current.Version
		score.CreatedAt = st.current.CreatedAt
	}
	score.EngagementRaw = r.EngagementRaw
	score.EngagementScore = r.Engagement
	score.ProfileScore = r.ProfileScore
	score.RecencyScore = r.RecencyScore
	score.TotalScore = r.Total
	score.TotalScoreRaw = r.TotalRaw
	score.Grade = r.Grade
	score.LifecycleStage = r.Stage
	score.LastPositiveAt = r.LastPositiveAt
	score.ScoreUpdatedAt = now
	return score
}
