package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/leaderboard"
)

// LeaderboardRepo implements leaderboard.Repository against PostgreSQL.
type LeaderboardRepo struct{ db *sql.DB }

// NewLeaderboardRepo creates a Postgres-backed leaderboard repository.
func NewLeaderboardRepo(db *sql.DB) *LeaderboardRepo { return &LeaderboardRepo{db: db} }

func (r *LeaderboardRepo) Leaderboard(ctx context.Context, orgID string, f leaderboard.Filter, sort leaderboard.SortMode) ([]leaderboard.Entry, int, error) {
	sortCol := "cs.total_score_raw"
	if sort == leaderboard.SortClamped {
		sortCol = "cs.total_score"
	}

	where := `WHERE cs.organization_id = $1`
	args := []interface{}{orgID}
	idx := 2

	if f.MinScore > 0 {
		where += fmt.Sprintf(" AND %s >= $%d", sortCol, idx)
		args = append(args, f.MinScore)
		idx++
	}
	if f.Stage != "" {
		where += fmt.Sprintf(" AND cs.lifecycle_stage = $%d", idx)
		args = append(args, f.Stage)
		idx++
	}

	var total int
	countQ := `SELECT COUNT(*) FROM contact_scores cs ` + where
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leaderboard: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT cs.contact_id, COALESCE(c.email,''),
		       TRIM(COALESCE(c.first_name,'') || ' ' || COALESCE(c.last_name,'')),
		       cs.total_score, cs.total_score_raw, cs.engagement_score,
		       cs.profile_score, cs.recency_score, cs.grade, cs.lifecycle_stage,
		       cs.last_positive_at, cs.score_updated_at
		FROM contact_scores cs
		LEFT JOIN contacts c ON c.id = cs.contact_id
		%s
		ORDER BY %s DESC, cs.score_updated_at DESC
		LIMIT $%d OFFSET $%d
	`, where, sortCol, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var out []leaderboard.Entry
	for rows.Next() {
		var e leaderboard.Entry
		if err := rows.Scan(
			&e.ContactID, &e.Email, &e.Name, &e.TotalScore, &e.TotalScoreRaw,
			&e.EngagementScore, &e.ProfileScore, &e.RecencyScore, &e.Grade,
			&e.LifecycleStage, &e.LastPositiveAt, &e.ScoreUpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *LeaderboardRepo) Distribution(ctx context.Context, orgID string) (map[domain.LifecycleStage]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT lifecycle_stage, COUNT(*)
		FROM contact_scores
		WHERE organization_id = $1
		GROUP BY lifecycle_stage
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.LifecycleStage]int)
	for rows.Next() {
		var stage domain.LifecycleStage
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		out[stage] = count
	}
	return out, rows.Err()
}

func (r *LeaderboardRepo) StageStats(ctx context.Context, orgID string) ([]leaderboard.StageStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT lifecycle_stage, COUNT(*),
		       COALESCE(AVG(total_score), 0), COALESCE(AVG(engagement_score), 0)
		FROM contact_scores
		WHERE organization_id = $1
		GROUP BY lifecycle_stage
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("stage stats: %w", err)
	}
	defer rows.Close()

	var out []leaderboard.StageStat
	for rows.Next() {
		var st leaderboard.StageStat
		if err := rows.Scan(&st.Stage, &st.Count, &st.AvgScore, &st.AvgEngagement); err != nil {
			return nil, fmt.Errorf("scan stage stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *LeaderboardRepo) ReengagementCandidates(ctx context.Context, orgID string, minDays, maxDays, minEngagement, limit int) ([]leaderboard.Candidate, error) {
	now := time.Now().UTC()
	windowStart := now.AddDate(0, 0, -maxDays)
	windowEnd := now.AddDate(0, 0, -minDays)

	rows, err := r.db.QueryContext(ctx, `
		SELECT cs.contact_id, COALESCE(c.email,''),
		       TRIM(COALESCE(c.first_name,'') || ' ' || COALESCE(c.last_name,'')),
		       cs.lifecycle_stage, cs.total_score, cs.engagement_score,
		       cs.last_positive_at
		FROM contact_scores cs
		JOIN contacts c ON c.id = cs.contact_id
		WHERE cs.organization_id = $1
		  AND cs.last_positive_at IS NOT NULL
		  AND cs.last_positive_at >= $2
		  AND cs.last_positive_at <= $3
		  AND cs.engagement_score > $4
		  AND c.subscribed = true
		ORDER BY cs.engagement_score DESC
		LIMIT $5
	`, orgID, windowStart, windowEnd, minEngagement, limit)
	if err != nil {
		return nil, fmt.Errorf("reengagement candidates: %w", err)
	}
	defer rows.Close()

	var out []leaderboard.Candidate
	for rows.Next() {
		var cand leaderboard.Candidate
		var lastPositive sql.NullTime
		if err := rows.Scan(
			&cand.ContactID, &cand.Email, &cand.Name, &cand.LifecycleStage,
			&cand.TotalScore, &cand.EngagementScore, &lastPositive,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if lastPositive.Valid {
			cand.DaysInactive = int(now.Sub(lastPositive.Time).Hours() / 24)
		}
		cand.Priority = "medium"
		if cand.EngagementScore > 30 {
			cand.Priority = "high"
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}
