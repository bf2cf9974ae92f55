package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/leaderboard"
	"github.com/ignite/leadscore/internal/rules"
	"github.com/ignite/leadscore/internal/scoring"
	"github.com/ignite/leadscore/internal/suppression"
)

// In-memory backends wiring a full API stack for handler tests.

type memScores struct {
	mu     sync.Mutex
	rules  map[string]map[domain.ScoreEventType]domain.ScoringRule
	ledger map[string][]domain.ScoreEvent
	scores map[string]*domain.ContactScore
}

func newMemScores() *memScores {
	return &memScores{
		rules:  make(map[string]map[domain.ScoreEventType]domain.ScoringRule),
		ledger: make(map[string][]domain.ScoreEvent),
		scores: make(map[string]*domain.ContactScore),
	}
}

func (m *memScores) addRule(r domain.ScoringRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rules[r.OrganizationID] == nil {
		m.rules[r.OrganizationID] = make(map[domain.ScoreEventType]domain.ScoringRule)
	}
	m.rules[r.OrganizationID][r.EventType] = r
}

func (m *memScores) ActiveRule(_ context.Context, orgID string, t domain.ScoreEventType) (*domain.ScoringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[orgID][t]; ok {
		return &r, nil
	}
	return nil, fmt.Errorf("%w: %s", scoring.ErrUnknownRule, t)
}

func (m *memScores) ActiveRules(_ context.Context, orgID string) (map[domain.ScoreEventType]domain.ScoringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.ScoreEventType]domain.ScoringRule, len(m.rules[orgID]))
	for t, r := range m.rules[orgID] {
		out[t] = r
	}
	return out, nil
}

func (m *memScores) Ledger(_ context.Context, orgID, contactID string) ([]domain.ScoreEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.ledger[orgID+"/"+contactID]
	out := make([]domain.ScoreEvent, len(src))
	copy(out, src)
	return out, nil
}

func (m *memScores) Current(_ context.Context, orgID, contactID string) (*domain.ContactScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.scores[orgID+"/"+contactID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memScores) Commit(_ context.Context, evt *domain.ScoreEvent, score *domain.ContactScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := score.OrganizationID + "/" + score.ContactID
	m.ledger[evt.OrganizationID+"/"+evt.ContactID] = append(m.ledger[evt.OrganizationID+"/"+evt.ContactID], *evt)
	cp := *score
	cp.Version = score.Version + 1
	m.scores[key] = &cp
	return nil
}

func (m *memScores) History(ctx context.Context, orgID, contactID string, limit, offset int) ([]domain.ScoreEvent, int, error) {
	events, _ := m.Ledger(ctx, orgID, contactID)
	return events, len(events), nil
}

func (m *memScores) Profile(_ context.Context, _, _ string) (*domain.Contact, error) {
	return nil, nil
}

type memRules struct {
	mu    sync.Mutex
	byID  map[string]*domain.ScoringRule
	index int
}

func (m *memRules) Get(_ context.Context, orgID, id string) (*domain.ScoringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok && r.OrganizationID == orgID {
		cp := *r
		return &cp, nil
	}
	return nil, rules.ErrNotFound
}

func (m *memRules) List(_ context.Context, orgID string, _ bool) ([]domain.ScoringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScoringRule
	for _, r := range m.byID {
		if r.OrganizationID == orgID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRules) ActiveByEventType(_ context.Context, orgID string, t domain.ScoreEventType) (*domain.ScoringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byID {
		if r.OrganizationID == orgID && r.EventType == t && r.Active {
			cp := *r
			return &cp, nil
		}
	}
	return nil, rules.ErrNotFound
}

func (m *memRules) Create(_ context.Context, r *domain.ScoringRule) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = make(map[string]*domain.ScoringRule)
	}
	m.index++
	r.ID = fmt.Sprintf("rule-%d", m.index)
	cp := *r
	m.byID[r.ID] = &cp
	return r.ID, nil
}

func (m *memRules) Update(_ context.Context, orgID, id string, u rules.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok || r.OrganizationID != orgID {
		return rules.ErrNotFound
	}
	if u.Points != nil {
		r.Points = *u.Points
	}
	return nil
}

func (m *memRules) Deactivate(_ context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok || r.OrganizationID != orgID {
		return rules.ErrNotFound
	}
	r.Active = false
	return nil
}

type memBoard struct{}

func (memBoard) Leaderboard(_ context.Context, _ string, f leaderboard.Filter, _ leaderboard.SortMode) ([]leaderboard.Entry, int, error) {
	return nil, 0, nil
}
func (memBoard) Distribution(_ context.Context, _ string) (map[domain.LifecycleStage]int, error) {
	return map[domain.LifecycleStage]int{}, nil
}
func (memBoard) StageStats(_ context.Context, _ string) ([]leaderboard.StageStat, error) {
	return nil, nil
}
func (memBoard) ReengagementCandidates(_ context.Context, _ string, _, _, _, _ int) ([]leaderboard.Candidate, error) {
	return nil, nil
}

type memSupp struct {
	mu      sync.Mutex
	entries map[string]*domain.Suppression
}

func (m *memSupp) IsSuppressed(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[email]
	return ok && s.Active, nil
}
func (m *memSupp) Suppress(_ context.Context, s *domain.Suppression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]*domain.Suppression)
	}
	cp := *s
	m.entries[s.Email] = &cp
	return nil
}
func (m *memSupp) Remove(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[email]
	if !ok || !s.Active {
		return suppression.ErrNotFound
	}
	s.Active = false
	return nil
}
func (m *memSupp) List(_ context.Context, _ suppression.ListFilter) ([]domain.Suppression, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Suppression
	for _, s := range m.entries {
		if s.Active {
			out = append(out, *s)
		}
	}
	return out, len(out), nil
}

func newTestServer(t *testing.T, store *memScores) *httptest.Server {
	t.Helper()
	engine := scoring.NewEngine(store, store)
	scoringAPI := NewScoringAPI(
		engine,
		rules.NewService(&memRules{}),
		leaderboard.NewService(memBoard{}, nil, 0, leaderboard.SortRaw),
		suppression.NewService(&memSupp{}),
		store,
		"default",
	)
	srv := httptest.NewServer(SetupRoutes(scoringAPI))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestApplyEventEndpoint(t *testing.T) {
	store := newMemScores()
	store.addRule(domain.ScoringRule{
		ID: "r1", OrganizationID: "default", Name: "Open",
		EventType: domain.EventEmailOpen, Points: 5, Active: true,
	})
	srv := newTestServer(t, store)

	resp := postJSON(t, srv.URL+"/api/scoring/events",
		`{"contact_id":"c1","event_type":"email_open"}`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var score domain.ContactScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if score.EngagementScore != 5 {
		t.Errorf("engagement = %d, want 5", score.EngagementScore)
	}
}

func TestApplyEventUnknownRuleIs422(t *testing.T) {
	srv := newTestServer(t, newMemScores())

	resp := postJSON(t, srv.URL+"/api/scoring/events",
		`{"contact_id":"c1","event_type":"page_view"}`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestApplyEventReservedTypeIs400(t *testing.T) {
	srv := newTestServer(t, newMemScores())

	resp := postJSON(t, srv.URL+"/api/scoring/events",
		`{"contact_id":"c1","event_type":"manual_award"}`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestManualAwardRequiresReason(t *testing.T) {
	srv := newTestServer(t, newMemScores())

	resp := postJSON(t, srv.URL+"/api/scoring/manual",
		`{"contact_id":"c1","points":10}`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetScoreNotFound(t *testing.T) {
	srv := newTestServer(t, newMemScores())

	resp, err := http.Get(srv.URL + "/api/scoring/contacts/ghost")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestOrgHeaderScopesRequests(t *testing.T) {
	store := newMemScores()
	store.addRule(domain.ScoringRule{
		ID: "r1", OrganizationID: "org-b", Name: "Open",
		EventType: domain.EventEmailOpen, Points: 5, Active: true,
	})
	srv := newTestServer(t, store)

	// Default org has no rule for the type.
	resp := postJSON(t, srv.URL+"/api/scoring/events",
		`{"contact_id":"c1","event_type":"email_open"}`, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("default org status = %d, want 422", resp.StatusCode)
	}

	// org-b does.
	resp = postJSON(t, srv.URL+"/api/scoring/events",
		`{"contact_id":"c1","event_type":"email_open"}`,
		map[string]string{"X-Org-ID": "org-b"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("org-b status = %d, want 200", resp.StatusCode)
	}
}

func TestRuleLifecycleEndpoints(t *testing.T) {
	srv := newTestServer(t, newMemScores())

	resp := postJSON(t, srv.URL+"/api/scoring/rules",
		`{"name":"Click","event_type":"email_click","points":10,"cap":100}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var rule domain.ScoringRule
	if err := json.NewDecoder(resp.Body).Decode(&rule); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	// Second active rule for the same type conflicts.
	resp = postJSON(t, srv.URL+"/api/scoring/rules",
		`{"name":"Click2","event_type":"email_click","points":5}`, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", resp.StatusCode)
	}

	req, _ := http.NewRequest("DELETE", srv.URL+"/api/scoring/rules/"+rule.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("deactivate status = %d, want 200", resp.StatusCode)
	}
}

func TestSuppressionEndpoints(t *testing.T) {
	srv := newTestServer(t, newMemScores())

	resp := postJSON(t, srv.URL+"/api/suppression/",
		`{"email":"user@example.com","reason":"manual"}`, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("suppress status = %d, want 201", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/api/suppression/check/user@example.com")
	if err != nil {
		t.Fatal(err)
	}
	var check map[string]bool
	json.NewDecoder(resp.Body).Decode(&check)
	resp.Body.Close()
	if !check["suppressed"] {
		t.Error("expected suppressed=true")
	}

	req, _ := http.NewRequest("DELETE", srv.URL+"/api/suppression/ghost@example.com", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("remove unknown status = %d, want 404", resp.StatusCode)
	}
}
