package leaderboard

import (
	"context"
	"time"

	"github.com/ignite/leadscore/internal/domain"
)

// SortMode selects which total the leaderboard orders by.
type SortMode string

const (
	// SortRaw orders by the unclamped total so heavy engagers rank above
	// the 100-point grading ceiling. This is the default.
	SortRaw SortMode = "raw"
	// SortClamped orders by the grade-clamped total.
	SortClamped SortMode = "clamped"
)

// Entry is one leaderboard row: the persisted score joined with contact
// identity fields.
type Entry struct {
	ContactID       string                `json:"contact_id"`
	Email           string                `json:"email"`
	Name            string                `json:"name"`
	TotalScore      int                   `json:"total_score"`
	TotalScoreRaw   int                   `json:"total_score_raw"`
	EngagementScore int                   `json:"engagement_score"`
	ProfileScore    int                   `json:"profile_score"`
	RecencyScore    int                   `json:"recency_score"`
	Grade           domain.Grade          `json:"grade"`
	LifecycleStage  domain.LifecycleStage `json:"lifecycle_stage"`
	LastPositiveAt  *time.Time            `json:"last_positive_at"`
	ScoreUpdatedAt  time.Time             `json:"score_updated_at"`
}

// Filter controls leaderboard pagination and filtering.
type Filter struct {
	MinScore int                   // 0 = no minimum
	Stage    domain.LifecycleStage // "" = all stages
	Limit    int
	Offset   int
}

// StageStat aggregates one lifecycle stage.
type StageStat struct {
	Stage         domain.LifecycleStage `json:"stage"`
	Count         int                   `json:"count"`
	AvgScore      float64               `json:"avg_score"`
	AvgEngagement float64               `json:"avg_engagement"`
}

// Candidate is a contact with past engagement going quiet, worth a
// re-engagement campaign.
type Candidate struct {
	ContactID       string                `json:"contact_id"`
	Email           string                `json:"email"`
	Name            string                `json:"name"`
	LifecycleStage  domain.LifecycleStage `json:"lifecycle_stage"`
	TotalScore      int                   `json:"total_score"`
	EngagementScore int                   `json:"engagement_score"`
	DaysInactive    int                   `json:"days_inactive"`
	Priority        string                `json:"priority"` // high|medium
}

// Repository defines the read-side queries over contact_scores.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Leaderboard returns scored contacts ordered by the chosen total
	// descending, ties broken by score_updated_at descending (stable
	// order for pagination), plus the total match count.
	Leaderboard(ctx context.Context, orgID string, f Filter, sort SortMode) ([]Entry, int, error)

	// Distribution returns contact counts for stages that have at least
	// one contact. Zero-filling is the service's job.
	Distribution(ctx context.Context, orgID string) (map[domain.LifecycleStage]int, error)

	// StageStats returns per-stage aggregates for the lifecycle report.
	StageStats(ctx context.Context, orgID string) ([]StageStat, error)

	// ReengagementCandidates finds subscribed contacts whose last positive
	// activity falls inside the inactivity window and whose engagement
	// exceeds minEngagement, ordered by engagement descending.
	ReengagementCandidates(ctx context.Context, orgID string, minDays, maxDays, minEngagement, limit int) ([]Candidate, error)
}
