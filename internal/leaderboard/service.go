// Package leaderboard provides the read-side views over persisted contact
// scores: ranking, lifecycle distribution, per-stage reporting, and
// re-engagement candidate discovery. No scoring logic lives here; all
// writes belong to the scoring engine.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/pkg/logger"
)

// Service answers leaderboard and lifecycle queries, caching the stable
// aggregate views in Redis when a client is provided.
type Service struct {
	repo  Repository
	cache *redis.Client // nil disables caching
	ttl   time.Duration
	sort  SortMode
}

// NewService creates a leaderboard service. cache may be nil. sort selects
// raw vs clamped total ordering (default raw).
func NewService(repo Repository, cache *redis.Client, ttl time.Duration, sort SortMode) *Service {
	if sort != SortClamped {
		sort = SortRaw
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, sort: sort}
}

// Leaderboard returns scored contacts ranked by total score.
func (s *Service) Leaderboard(ctx context.Context, orgID string, f Filter) ([]Entry, int, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	return s.repo.Leaderboard(ctx, orgID, f, s.sort)
}

// Distribution returns the contact count per lifecycle stage, covering all
// six stages even when a count is zero.
func (s *Service) Distribution(ctx context.Context, orgID string) (map[domain.LifecycleStage]int, error) {
	key := fmt.Sprintf("leadscore:dist:%s", orgID)

	var cached map[domain.LifecycleStage]int
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}

	counts, err := s.repo.Distribution(ctx, orgID)
	if err != nil {
		return nil, err
	}

	dist := make(map[domain.LifecycleStage]int, len(domain.Stages))
	for _, stage := range domain.Stages {
		dist[stage] = counts[stage]
	}

	s.putCached(ctx, key, dist)
	return dist, nil
}

// Report is the lifecycle distribution with per-stage share and averages.
type Report struct {
	TotalContacts int                                  `json:"total_contacts"`
	Stages        map[domain.LifecycleStage]StageShare `json:"stages"`
}

// StageShare is one stage's slice of the report.
type StageShare struct {
	Count         int     `json:"count"`
	Pct           float64 `json:"pct"`
	AvgScore      float64 `json:"avg_score"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// LifecycleReport aggregates stage stats into a distribution report.
func (s *Service) LifecycleReport(ctx context.Context, orgID string) (*Report, error) {
	key := fmt.Sprintf("leadscore:report:%s", orgID)

	var cached Report
	if s.getCached(ctx, key, &cached) {
		return &cached, nil
	}

	stats, err := s.repo.StageStats(ctx, orgID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, st := range stats {
		total += st.Count
	}

	report := &Report{
		TotalContacts: total,
		Stages:        make(map[domain.LifecycleStage]StageShare, len(domain.Stages)),
	}
	for _, stage := range domain.Stages {
		report.Stages[stage] = StageShare{}
	}
	for _, st := range stats {
		pct := 0.0
		if total > 0 {
			pct = float64(st.Count) / float64(total) * 100
		}
		report.Stages[st.Stage] = StageShare{
			Count:         st.Count,
			Pct:           pct,
			AvgScore:      st.AvgScore,
			AvgEngagement: st.AvgEngagement,
		}
	}

	s.putCached(ctx, key, report)
	return report, nil
}

// ReengagementCandidates finds contacts with real past engagement whose
// last activity landed between minDays and maxDays ago.
func (s *Service) ReengagementCandidates(ctx context.Context, orgID string, minDays, maxDays, limit int) ([]Candidate, error) {
	if minDays <= 0 {
		minDays = 30
	}
	if maxDays <= minDays {
		maxDays = minDays + 60
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	const minEngagement = 5
	return s.repo.ReengagementCandidates(ctx, orgID, minDays, maxDays, minEngagement, limit)
}

// Invalidate drops the cached aggregate views for an organization. Called
// after writes that should be visible immediately (manual awards,
// recalculations); routine event traffic relies on the TTL.
func (s *Service) Invalidate(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	keys := []string{
		fmt.Sprintf("leadscore:dist:%s", orgID),
		fmt.Sprintf("leadscore:report:%s", orgID),
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("leaderboard cache invalidation failed", "error", err.Error())
	}
}

func (s *Service) getCached(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (s *Service) putCached(ctx context.Context, key string, v interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	// Cache failures only cost freshness, never correctness.
	if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
		logger.Debug("leaderboard cache write failed", "error", err.Error())
	}
}
