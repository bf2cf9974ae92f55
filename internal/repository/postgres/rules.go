package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/rules"
)

// RuleRepo implements rules.Repository against PostgreSQL. The partial
// unique index on (organization_id, event_type) WHERE active enforces the
// one-active-rule-per-type invariant at the database level.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed rule repository.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `id, organization_id, name, COALESCE(description,''), event_type,
	points, cap, decays, active, created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (*domain.ScoringRule, error) {
	r := &domain.ScoringRule{}
	err := row.Scan(
		&r.ID, &r.OrganizationID, &r.Name, &r.Description, &r.EventType,
		&r.Points, &r.Cap, &r.Decays, &r.Active, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RuleRepo) Get(ctx context.Context, orgID, id string) (*domain.ScoringRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+` FROM scoring_rules
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if err == sql.ErrNoRows {
		return nil, rules.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepo) List(ctx context.Context, orgID string, includeInactive bool) ([]domain.ScoringRule, error) {
	q := `SELECT ` + ruleColumns + ` FROM scoring_rules WHERE organization_id = $1`
	if !includeInactive {
		q += ` AND active = true`
	}
	q += ` ORDER BY active DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

func (r *RuleRepo) ActiveByEventType(ctx context.Context, orgID string, t domain.ScoreEventType) (*domain.ScoringRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+` FROM scoring_rules
		WHERE organization_id = $1 AND event_type = $2 AND active = true
	`, orgID, t))
	if err == sql.ErrNoRows {
		return nil, rules.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active rule by type: %w", err)
	}
	return rule, nil
}

func (r *RuleRepo) Create(ctx context.Context, rule *domain.ScoringRule) (string, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scoring_rules
			(id, organization_id, name, description, event_type, points, cap,
			 decays, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, rule.ID, rule.OrganizationID, rule.Name, rule.Description, rule.EventType,
		rule.Points, rule.Cap, rule.Decays, rule.Active)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return "", rules.ErrDuplicateActive
		}
		return "", fmt.Errorf("create rule: %w", err)
	}
	return rule.ID, nil
}

func (r *RuleRepo) Update(ctx context.Context, orgID, id string, u rules.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Points != nil {
		add("points", *u.Points)
	}
	if u.Cap != nil {
		add("cap", *u.Cap)
	}
	if u.Decays != nil {
		add("decays", *u.Decays)
	}

	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf(
		"UPDATE scoring_rules SET %s, updated_at = NOW() WHERE id = $%d AND organization_id = $%d",
		joinComma(sets), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return rules.ErrNotFound
	}
	return nil
}

func (r *RuleRepo) Deactivate(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scoring_rules SET active = false, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND active = true
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return rules.ErrNotFound
	}
	return nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
