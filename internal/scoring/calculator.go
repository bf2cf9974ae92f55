package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/ignite/leadscore/internal/domain"
)

// Profile completeness weights. They sum to exactly 20.
const (
	weightEmail     = 4
	weightFirstName = 4
	weightLastName  = 3
	weightPhone     = 3
	weightCountry   = 3
	weightCustom    = 3 // awarded once when the contact has 2+ custom fields
)

// recencyWindowDays is the e-folding constant of the recency decay curve:
// round(20 * exp(-days/90)) points for a contact whose last positive event
// was `days` ago.
const recencyWindowDays = 90.0

// maxComponentScore caps the profile and recency components.
const maxComponentScore = 20

// maxTotalScore is the grading ceiling on the combined total.
const maxTotalScore = 100

// Snapshot is everything the calculator needs, captured at one instant.
// Events must be ordered by occurred_at ascending.
type Snapshot struct {
	Events       []domain.ScoreEvent
	Rules        map[domain.ScoreEventType]domain.ScoringRule
	Contact      *domain.Contact // nil is treated as an empty profile
	CurrentStage domain.LifecycleStage
	Now          time.Time
}

// Result is the full recomputed score for one contact.
type Result struct {
	EngagementRaw  int // signed sum after per-rule caps; negative allowed
	Engagement     int // EngagementRaw floored at 0, used for display/grading
	ProfileScore   int
	RecencyScore   int
	TotalRaw       int // unclamped, default leaderboard sort key
	Total          int // clamped to 100, drives grade and stage
	Grade          domain.Grade
	Stage          domain.LifecycleStage
	LastPositiveAt *time.Time
}

// Calculate recomputes a contact's score from scratch. Pure: no I/O, no
// side effects, deterministic for a fixed Now.
func Calculate(s Snapshot) Result {
	raw := engagementRaw(s.Events, s.Rules)

	engagement := raw
	if engagement < 0 {
		engagement = 0
	}

	profile := ProfileScore(s.Contact)

	lastPositive := lastPositiveEvent(s.Events)
	recency := RecencyScore(lastPositive, s.Now)

	totalRaw := engagement + profile + recency
	total := totalRaw
	if total > maxTotalScore {
		total = maxTotalScore
	}

	return Result{
		EngagementRaw:  raw,
		Engagement:     engagement,
		ProfileScore:   profile,
		RecencyScore:   recency,
		TotalRaw:       totalRaw,
		Total:          total,
		Grade:          GradeFor(total),
		Stage:          stageFor(total, s.CurrentStage, s.Events),
		LastPositiveAt: lastPositive,
	}
}

// engagementRaw sums ledger deltas per event type, clamps each rule-driven
// type to its rule's cap, and adds manual adjustments unclamped.
func engagementRaw(events []domain.ScoreEvent, rules map[domain.ScoreEventType]domain.ScoringRule) int {
	perType := make(map[domain.ScoreEventType]int)
	manual := 0

	for _, e := range events {
		switch e.EventType {
		case domain.EventManualAward, domain.EventManualDeduction:
			manual += e.Points
		case domain.EventRecalculation:
			// zero-delta audit rows
		default:
			perType[e.EventType] += e.Points
		}
	}

	total := manual
	for t, sum := range perType {
		if r, ok := rules[t]; ok && r.Cap > 0 && sum > r.Cap {
			sum = r.Cap
		}
		total += sum
	}
	return total
}

// ProfileScore scores profile completeness 0-20 from present fields.
func ProfileScore(c *domain.Contact) int {
	if c == nil {
		return 0
	}
	score := 0
	if strings.TrimSpace(c.Email) != "" {
		score += weightEmail
	}
	if strings.TrimSpace(c.FirstName) != "" {
		score += weightFirstName
	}
	if strings.TrimSpace(c.LastName) != "" {
		score += weightLastName
	}
	if strings.TrimSpace(c.Phone) != "" {
		score += weightPhone
	}
	if strings.TrimSpace(c.Country) != "" {
		score += weightCountry
	}
	if len(c.CustomFields) >= 2 {
		score += weightCustom
	}
	if score > maxComponentScore {
		score = maxComponentScore
	}
	return score
}

// RecencyScore scores 0-20 by exponential decay over days since the last
// positive-delta event. Zero and negative deltas (bounces, penalties) do
// not count as activity.
func RecencyScore(lastPositive *time.Time, now time.Time) int {
	if lastPositive == nil {
		return 0
	}
	days := now.Sub(*lastPositive).Hours() / 24
	if days < 0 {
		days = 0
	}
	score := int(math.Round(maxComponentScore * math.Exp(-days/recencyWindowDays)))
	if score < 0 {
		return 0
	}
	return score
}

// lastPositiveEvent returns the occurred_at of the most recent event with a
// positive delta, or nil if the contact has never had one.
func lastPositiveEvent(events []domain.ScoreEvent) *time.Time {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Points > 0 {
			t := events[i].OccurredAt
			return &t
		}
	}
	return nil
}

// GradeFor maps a clamped total score to a letter grade. Band lower bounds
// are inclusive.
func GradeFor(total int) domain.Grade {
	switch {
	case total >= 90:
		return domain.GradeAPlus
	case total >= 80:
		return domain.GradeA
	case total >= 70:
		return domain.GradeBPlus
	case total >= 60:
		return domain.GradeB
	case total >= 45:
		return domain.GradeC
	case total >= 25:
		return domain.GradeD
	default:
		return domain.GradeF
	}
}

// stageFor derives the lifecycle stage: the score-driven stage, raised by
// any business override events in the ledger, never below the stage the
// contact already reached.
func stageFor(total int, current domain.LifecycleStage, events []domain.ScoreEvent) domain.LifecycleStage {
	stage := scoreStage(total)
	for _, e := range events {
		switch e.EventType {
		case domain.EventCustomerConversion:
			stage = domain.MaxStage(stage, domain.StageCustomer)
		case domain.EventEvangelistPromotion:
			stage = domain.MaxStage(stage, domain.StageEvangelist)
		}
	}
	return domain.MaxStage(current, stage)
}

// scoreStage is the stage reachable by score alone. Customer and evangelist
// are only reached through override events.
func scoreStage(total int) domain.LifecycleStage {
	switch {
	case total >= 70:
		return domain.StageSQL
	case total >= 45:
		return domain.StageMQL
	case total >= 25:
		return domain.StageLead
	default:
		return domain.StageSubscriber
	}
}
