package domain

import "time"

// ScoreEventType identifies what kind of action produced a score event.
// Rule-driven types map 1:1 to active ScoringRules; the manual, recalculation
// and override types are reserved and never carry a rule.
type ScoreEventType string

const (
	EventEmailOpen  ScoreEventType = "email_open"
	EventEmailClick ScoreEventType = "email_click"
	EventFormSubmit ScoreEventType = "form_submit"
	EventPageView   ScoreEventType = "page_view"
	EventBounced    ScoreEventType = "bounced"
	EventComplained ScoreEventType = "complained"
	EventUnsubbed   ScoreEventType = "unsubscribed"

	// Reserved types. These bypass rule caps entirely.
	EventManualAward     ScoreEventType = "manual_award"
	EventManualDeduction ScoreEventType = "manual_deduction"
	EventRecalculation   ScoreEventType = "recalculation"

	// Business override types. Their presence in a contact's ledger forces
	// the lifecycle stage regardless of score.
	EventCustomerConversion  ScoreEventType = "customer_conversion"
	EventEvangelistPromotion ScoreEventType = "evangelist_promotion"
)

// Reserved reports whether the event type is one of the engine-internal
// types that never require an active scoring rule.
func (t ScoreEventType) Reserved() bool {
	switch t {
	case EventManualAward, EventManualDeduction, EventRecalculation:
		return true
	}
	return false
}

// Override reports whether the event type forces a lifecycle stage
// regardless of score.
func (t ScoreEventType) Override() bool {
	return t == EventCustomerConversion || t == EventEvangelistPromotion
}

// ScoringRule awards (or deducts) points when a matching engagement event
// is recorded. At most one rule per event type may be active at a time.
// Rules referenced by ledger entries are never deleted, only deactivated.
type ScoringRule struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description" db:"description"`
	EventType      ScoreEventType `json:"event_type" db:"event_type"`
	Points         int            `json:"points" db:"points"` // negative allowed (bounce/complaint penalties)
	Cap            int            `json:"cap" db:"cap"`       // max cumulative points per contact; 0 = unlimited
	Decays         bool           `json:"decays" db:"decays"`
	Active         bool           `json:"active" db:"active"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Grade is the letter grade derived from the clamped total score.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// LifecycleStage is the funnel position of a contact. Stages only advance;
// a recalculation never moves a contact backwards.
type LifecycleStage string

const (
	StageSubscriber LifecycleStage = "subscriber"
	StageLead       LifecycleStage = "lead"
	StageMQL        LifecycleStage = "mql"
	StageSQL        LifecycleStage = "sql"
	StageCustomer   LifecycleStage = "customer"
	StageEvangelist LifecycleStage = "evangelist"
)

// Stages lists all lifecycle stages in funnel order.
var Stages = []LifecycleStage{
	StageSubscriber, StageLead, StageMQL, StageSQL, StageCustomer, StageEvangelist,
}

var stageRank = map[LifecycleStage]int{
	StageSubscriber: 0,
	StageLead:       1,
	StageMQL:        2,
	StageSQL:        3,
	StageCustomer:   4,
	StageEvangelist: 5,
}

// Rank returns the funnel position of the stage. Unknown stages rank lowest.
func (s LifecycleStage) Rank() int { return stageRank[s] }

// MaxStage returns the further-along of two stages.
func MaxStage(a, b LifecycleStage) LifecycleStage {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ContactScore is the materialized score for one contact. It is a cache:
// the stored values are always recomputable from the score_events ledger,
// the contact profile and the current time. Owned exclusively by the score
// engine; read-only everywhere else.
type ContactScore struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	ContactID      string `json:"contact_id" db:"contact_id"`

	EngagementRaw   int `json:"engagement_raw" db:"engagement_raw"` // signed, uncapped-below, kept for audit
	EngagementScore int `json:"engagement_score" db:"engagement_score"`
	ProfileScore    int `json:"profile_score" db:"profile_score"` // 0-20
	RecencyScore    int `json:"recency_score" db:"recency_score"` // 0-20, decays
	TotalScore      int `json:"total_score" db:"total_score"`     // clamped to 100, drives grade/stage
	TotalScoreRaw   int `json:"total_score_raw" db:"total_score_raw"`

	Grade          Grade          `json:"grade" db:"grade"`
	LifecycleStage LifecycleStage `json:"lifecycle_stage" db:"lifecycle_stage"`

	LastPositiveAt *time.Time `json:"last_positive_at" db:"last_positive_at"`
	ScoreUpdatedAt time.Time  `json:"score_updated_at" db:"score_updated_at"`
	Version        int64      `json:"-" db:"version"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// ScoreEvent is one immutable row in the per-contact scoring ledger.
// Append-only: never updated, never deleted. The ledger is the source of
// truth for recency decay and score history reconstruction.
type ScoreEvent struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	ContactID      string         `json:"contact_id" db:"contact_id"`
	RuleID         *string        `json:"rule_id,omitempty" db:"rule_id"`
	EventType      ScoreEventType `json:"event_type" db:"event_type"`
	Points         int            `json:"points" db:"points"`
	RunningTotal   int            `json:"running_total" db:"running_total"` // signed engagement sum after this event
	Reason         string         `json:"reason,omitempty" db:"reason"`
	OccurredAt     time.Time      `json:"occurred_at" db:"occurred_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}
