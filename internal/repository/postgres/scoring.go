package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/scoring"
)

// ScoreRepo implements scoring.Repository against PostgreSQL.
//
// Commit relies on the version column of contact_scores for optimistic
// concurrency: the engine's per-contact mutex makes conflicts impossible
// within one process, the version check catches races across processes.
type ScoreRepo struct{ db *sql.DB }

// NewScoreRepo creates a Postgres-backed scoring repository.
func NewScoreRepo(db *sql.DB) *ScoreRepo { return &ScoreRepo{db: db} }

func (r *ScoreRepo) ActiveRule(ctx context.Context, orgID string, t domain.ScoreEventType) (*domain.ScoringRule, error) {
	rule := &domain.ScoringRule{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, COALESCE(description,''), event_type,
		       points, cap, decays, active, created_at, updated_at
		FROM scoring_rules
		WHERE organization_id = $1 AND event_type = $2 AND active = true
	`, orgID, t).Scan(
		&rule.ID, &rule.OrganizationID, &rule.Name, &rule.Description, &rule.EventType,
		&rule.Points, &rule.Cap, &rule.Decays, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", scoring.ErrUnknownRule, t)
	}
	if err != nil {
		return nil, fmt.Errorf("active rule: %w", err)
	}
	return rule, nil
}

func (r *ScoreRepo) ActiveRules(ctx context.Context, orgID string) (map[domain.ScoreEventType]domain.ScoringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, name, COALESCE(description,''), event_type,
		       points, cap, decays, active, created_at, updated_at
		FROM scoring_rules
		WHERE organization_id = $1 AND active = true
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("active rules: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ScoreEventType]domain.ScoringRule)
	for rows.Next() {
		var rule domain.ScoringRule
		if err := rows.Scan(
			&rule.ID, &rule.OrganizationID, &rule.Name, &rule.Description, &rule.EventType,
			&rule.Points, &rule.Cap, &rule.Decays, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out[rule.EventType] = rule
	}
	return out, rows.Err()
}

func (r *ScoreRepo) Ledger(ctx context.Context, orgID, contactID string) ([]domain.ScoreEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, contact_id, rule_id, event_type, points,
		       running_total, COALESCE(reason,''), occurred_at, created_at
		FROM score_events
		WHERE organization_id = $1 AND contact_id = $2
		ORDER BY occurred_at ASC, created_at ASC
	`, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreEvent
	for rows.Next() {
		var e domain.ScoreEvent
		var ruleID sql.NullString
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.ContactID, &ruleID, &e.EventType, &e.Points,
			&e.RunningTotal, &e.Reason, &e.OccurredAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ruleID.Valid {
			e.RuleID = &ruleID.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ScoreRepo) Current(ctx context.Context, orgID, contactID string) (*domain.ContactScore, error) {
	s := &domain.ContactScore{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, contact_id, engagement_raw, engagement_score,
		       profile_score, recency_score, total_score, total_score_raw,
		       grade, lifecycle_stage, last_positive_at, score_updated_at,
		       version, created_at
		FROM contact_scores
		WHERE organization_id = $1 AND contact_id = $2
	`, orgID, contactID).Scan(
		&s.ID, &s.OrganizationID, &s.ContactID, &s.EngagementRaw, &s.EngagementScore,
		&s.ProfileScore, &s.RecencyScore, &s.TotalScore, &s.TotalScoreRaw,
		&s.Grade, &s.LifecycleStage, &s.LastPositiveAt, &s.ScoreUpdatedAt,
		&s.Version, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current score: %w", err)
	}
	return s, nil
}

func (r *ScoreRepo) Commit(ctx context.Context, evt *domain.ScoreEvent, score *domain.ContactScore) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var ruleID interface{}
	if evt.RuleID != nil {
		ruleID = *evt.RuleID
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO score_events
			(id, organization_id, contact_id, rule_id, event_type, points,
			 running_total, reason, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, evt.ID, evt.OrganizationID, evt.ContactID, ruleID, evt.EventType,
		evt.Points, evt.RunningTotal, evt.Reason, evt.OccurredAt, evt.CreatedAt); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if score.Version == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO contact_scores
				(id, organization_id, contact_id, engagement_raw, engagement_score,
				 profile_score, recency_score, total_score, total_score_raw,
				 grade, lifecycle_stage, last_positive_at, score_updated_at,
				 version, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14)
			ON CONFLICT (contact_id) DO NOTHING
		`, score.ID, score.OrganizationID, score.ContactID, score.EngagementRaw,
			score.EngagementScore, score.ProfileScore, score.RecencyScore,
			score.TotalScore, score.TotalScoreRaw, score.Grade, score.LifecycleStage,
			score.LastPositiveAt, score.ScoreUpdatedAt, score.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Another writer created the row between our read and this commit.
			return scoring.ErrConflict
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE contact_scores SET
				engagement_raw = $1, engagement_score = $2, profile_score = $3,
				recency_score = $4, total_score = $5, total_score_raw = $6,
				grade = $7, lifecycle_stage = $8, last_positive_at = $9,
				score_updated_at = $10, version = version + 1
			WHERE organization_id = $11 AND contact_id = $12 AND version = $13
		`, score.EngagementRaw, score.EngagementScore, score.ProfileScore,
			score.RecencyScore, score.TotalScore, score.TotalScoreRaw,
			score.Grade, score.LifecycleStage, score.LastPositiveAt,
			score.ScoreUpdatedAt, score.OrganizationID, score.ContactID, score.Version)
		if err != nil {
			return fmt.Errorf("update score: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return scoring.ErrConflict
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// History returns a page of the contact's ledger, newest first, with the
// total row count. Read-side helper for the audit trail endpoint.
func (r *ScoreRepo) History(ctx context.Context, orgID, contactID string, limit, offset int) ([]domain.ScoreEvent, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM score_events
		WHERE organization_id = $1 AND contact_id = $2
	`, orgID, contactID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, contact_id, rule_id, event_type, points,
		       running_total, COALESCE(reason,''), occurred_at, created_at
		FROM score_events
		WHERE organization_id = $1 AND contact_id = $2
		ORDER BY occurred_at DESC, created_at DESC
		LIMIT $3 OFFSET $4
	`, orgID, contactID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreEvent
	for rows.Next() {
		var e domain.ScoreEvent
		var ruleID sql.NullString
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.ContactID, &ruleID, &e.EventType, &e.Points,
			&e.RunningTotal, &e.Reason, &e.OccurredAt, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		if ruleID.Valid {
			e.RuleID = &ruleID.String
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
