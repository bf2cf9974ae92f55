package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/leaderboard"
	"github.com/ignite/leadscore/internal/rules"
	"github.com/ignite/leadscore/internal/scoring"
	"github.com/ignite/leadscore/internal/suppression"
)

// ScoreStore exposes the read-side of persisted scores to the API: the
// current score and the audit trail. Writes go through the engine only.
type ScoreStore interface {
	Current(ctx context.Context, orgID, contactID string) (*domain.ContactScore, error)
	History(ctx context.Context, orgID, contactID string, limit, offset int) ([]domain.ScoreEvent, int, error)
}

// ScoringAPI exposes the scoring engine and its read views via REST.
// All handlers are thin pass-throughs; the services carry the logic.
type ScoringAPI struct {
	engine     *scoring.Engine
	rules      *rules.Service
	board      *leaderboard.Service
	supp       *suppression.Service
	store      ScoreStore
	defaultOrg string
}

// NewScoringAPI creates the admin API surface.
func NewScoringAPI(engine *scoring.Engine, ruleSvc *rules.Service, board *leaderboard.Service, supp *suppression.Service, store ScoreStore, defaultOrg string) *ScoringAPI {
	return &ScoringAPI{
		engine:     engine,
		rules:      ruleSvc,
		board:      board,
		supp:       supp,
		store:      store,
		defaultOrg: defaultOrg,
	}
}

func (api *ScoringAPI) RegisterRoutes(r chi.Router) {
	r.Route("/scoring", func(r chi.Router) {
		r.Post("/events", api.HandleApplyEvent)
		r.Post("/manual", api.HandleManualAward)
		r.Post("/recalculate/{contactID}", api.HandleRecalculate)

		r.Get("/contacts/{contactID}", api.HandleGetScore)
		r.Get("/contacts/{contactID}/history", api.HandleHistory)

		r.Get("/leaderboard", api.HandleLeaderboard)
		r.Get("/lifecycle/distribution", api.HandleDistribution)
		r.Get("/lifecycle/report", api.HandleReport)
		r.Get("/reengagement", api.HandleReengagement)

		r.Get("/rules", api.HandleListRules)
		r.Post("/rules", api.HandleCreateRule)
		r.Get("/rules/{id}", api.HandleGetRule)
		r.Put("/rules/{id}", api.HandleUpdateRule)
		r.Delete("/rules/{id}", api.HandleDeactivateRule)
	})

	r.Route("/suppression", func(r chi.Router) {
		r.Get("/", api.HandleListSuppressions)
		r.Post("/", api.HandleSuppress)
		r.Get("/check/{email}", api.HandleCheckSuppression)
		r.Delete("/{email}", api.HandleRemoveSuppression)
	})
}

func (api *ScoringAPI) orgID(r *http.Request) string {
	if org := r.Header.Get("X-Org-ID"); org != "" {
		return org
	}
	return api.defaultOrg
}

// HandleApplyEvent records one engagement event through the engine.
func (api *ScoringAPI) HandleApplyEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID  string    `json:"contact_id"`
		EventType  string    `json:"event_type"`
		OccurredAt time.Time `json:"occurred_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContactID == "" || req.EventType == "" {
		writeError(w, http.StatusBadRequest, "contact_id and event_type are required")
		return
	}

	score, err := api.engine.ApplyEvent(r.Context(), api.orgID(r), req.ContactID,
		domain.ScoreEventType(req.EventType), req.OccurredAt)
	if err != nil {
		api.writeScoringError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// HandleManualAward records a manual point adjustment.
func (api *ScoringAPI) HandleManualAward(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID string `json:"contact_id"`
		Points    int    `json:"points"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContactID == "" {
		writeError(w, http.StatusBadRequest, "contact_id is required")
		return
	}

	org := api.orgID(r)
	score, err := api.engine.AwardManual(r.Context(), org, req.ContactID, req.Points, req.Reason)
	if err != nil {
		api.writeScoringError(w, err)
		return
	}
	api.board.Invalidate(r.Context(), org)
	writeJSON(w, http.StatusOK, score)
}

// HandleRecalculate refreshes a contact's score from the full ledger.
func (api *ScoringAPI) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	org := api.orgID(r)
	score, err := api.engine.Recalculate(r.Context(), org, chi.URLParam(r, "contactID"))
	if err != nil {
		api.writeScoringError(w, err)
		return
	}
	api.board.Invalidate(r.Context(), org)
	writeJSON(w, http.StatusOK, score)
}

// HandleGetScore returns a contact's current persisted score.
func (api *ScoringAPI) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	score, err := api.store.Current(r.Context(), api.orgID(r), chi.URLParam(r, "contactID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if score == nil {
		writeError(w, http.StatusNotFound, "contact has no score")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// HandleHistory returns a page of a contact's scoring ledger, newest first.
func (api *ScoringAPI) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50)
	events, total, err := api.store.History(r.Context(), api.orgID(r), chi.URLParam(r, "contactID"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// HandleLeaderboard returns scored contacts ranked by total score.
func (api *ScoringAPI) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50)
	minScore, _ := strconv.Atoi(r.URL.Query().Get("min_score"))

	f := leaderboard.Filter{
		MinScore: minScore,
		Stage:    domain.LifecycleStage(r.URL.Query().Get("stage")),
		Limit:    limit,
		Offset:   offset,
	}
	entries, total, err := api.board.Leaderboard(r.Context(), api.orgID(r), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleDistribution returns the contact count per lifecycle stage.
func (api *ScoringAPI) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := api.board.Distribution(r.Context(), api.orgID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

// HandleReport returns the lifecycle distribution report.
func (api *ScoringAPI) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := api.board.LifecycleReport(r.Context(), api.orgID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleReengagement returns contacts worth a re-engagement campaign.
func (api *ScoringAPI) HandleReengagement(w http.ResponseWriter, r *http.Request) {
	minDays, _ := strconv.Atoi(r.URL.Query().Get("min_days"))
	maxDays, _ := strconv.Atoi(r.URL.Query().Get("max_days"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	candidates, err := api.board.ReengagementCandidates(r.Context(), api.orgID(r), minDays, maxDays, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"candidates": candidates})
}

// HandleListRules returns the organization's scoring rules.
func (api *ScoringAPI) HandleListRules(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	list, err := api.rules.List(r.Context(), api.orgID(r), includeInactive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": list})
}

// HandleCreateRule creates a new active scoring rule.
func (api *ScoringAPI) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	var input rules.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := api.rules.Create(r.Context(), api.orgID(r), input)
	if err != nil {
		switch {
		case errors.Is(err, rules.ErrDuplicateActive):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// HandleGetRule returns a single rule.
func (api *ScoringAPI) HandleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := api.rules.Get(r.Context(), api.orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// HandleUpdateRule modifies mutable rule fields.
func (api *ScoringAPI) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var u rules.UpdateFields
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := api.rules.Update(r.Context(), api.orgID(r), chi.URLParam(r, "id"), u)
	if err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleDeactivateRule soft-disables a rule.
func (api *ScoringAPI) HandleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	err := api.rules.Deactivate(r.Context(), api.orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// HandleListSuppressions returns active suppression entries.
func (api *ScoringAPI) HandleListSuppressions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 100)
	entries, total, err := api.supp.List(r.Context(), suppression.ListFilter{
		Reason: domain.SuppressionReason(r.URL.Query().Get("reason")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleSuppress adds an email to the suppression list.
func (api *ScoringAPI) HandleSuppress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string `json:"email"`
		Reason string `json:"reason"`
		Source string `json:"source"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := api.supp.Add(r.Context(), req.Email, domain.SuppressionReason(req.Reason), req.Source, req.Notes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HandleCheckSuppression reports whether an email is suppressed.
func (api *ScoringAPI) HandleCheckSuppression(w http.ResponseWriter, r *http.Request) {
	suppressed, err := api.supp.Check(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"suppressed": suppressed})
}

// HandleRemoveSuppression deactivates a suppression entry.
func (api *ScoringAPI) HandleRemoveSuppression(w http.ResponseWriter, r *http.Request) {
	err := api.supp.Remove(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		if errors.Is(err, suppression.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// writeScoringError maps engine errors to HTTP statuses. UnknownRule is
// 422: the request was well-formed, scoring just has no rule for it yet.
func (api *ScoringAPI) writeScoringError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scoring.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scoring.ErrUnknownRule):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, scoring.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func pageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 1000 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
