package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the tracking endpoints. Link payloads are
// base64url("org|contact|campaign[|url]") signed with HMAC-SHA256.
type Handler struct {
	sink   Sink
	secret []byte // empty disables signature verification (dev only)
}

// NewHandler creates a tracking handler publishing to the given sink.
func NewHandler(sink Sink, secret string) *Handler {
	return &Handler{sink: sink, secret: []byte(secret)}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open/{data}/{sig}", h.HandleOpen)
	r.Get("/track/click/{data}/{sig}", h.HandleClick)
	r.Get("/track/unsubscribe/{data}/{sig}", h.HandleUnsubscribe)
	r.Post("/track/form", h.HandleForm)
	r.Get("/health", h.HandleHealth)
	return r
}

// Sign computes the URL-safe signature for an encoded payload. Exposed so
// the sending side can build tracking links.
func Sign(secret []byte, encoded string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verify(encoded, sig string) bool {
	if len(h.secret) == 0 {
		return true
	}
	return hmac.Equal([]byte(Sign(h.secret, encoded)), []byte(sig))
}

func (h *Handler) decode(r *http.Request, minParts int) ([]string, bool) {
	encoded := chi.URLParam(r, "data")
	if !h.verify(encoded, chi.URLParam(r, "sig")) {
		return nil, false
	}
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) < minParts {
		return nil, false
	}
	return parts, true
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	parts, ok := h.decode(r, 3)
	if !ok {
		// Always serve the pixel; a broken link must not break the email.
		h.servePixel(w)
		return
	}

	evt := TrackingEvent{
		EventType:  EventOpen,
		OrgID:      parts[0],
		ContactID:  parts[1],
		CampaignID: parts[2],
		IPAddress:  realIP(r),
		UserAgent:  r.UserAgent(),
		Timestamp:  time.Now().UTC(),
	}
	h.sink.Publish(r.Context(), evt)

	log.Printf("OPEN campaign=%s contact=%s", evt.CampaignID, evt.ContactID)
	h.servePixel(w)
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	parts, ok := h.decode(r, 4)
	if !ok {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}

	originalURL := parts[3]

	evt := TrackingEvent{
		EventType:  EventClick,
		OrgID:      parts[0],
		ContactID:  parts[1],
		CampaignID: parts[2],
		LinkURL:    originalURL,
		IPAddress:  realIP(r),
		UserAgent:  r.UserAgent(),
		Timestamp:  time.Now().UTC(),
	}
	h.sink.Publish(r.Context(), evt)

	log.Printf("CLICK campaign=%s contact=%s", evt.CampaignID, evt.ContactID)
	http.Redirect(w, r, originalURL, http.StatusTemporaryRedirect)
}

func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	parts, ok := h.decode(r, 3)
	if !ok {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}

	evt := TrackingEvent{
		EventType:  EventUnsubscribe,
		OrgID:      parts[0],
		ContactID:  parts[1],
		CampaignID: parts[2],
		IPAddress:  realIP(r),
		UserAgent:  r.UserAgent(),
		Timestamp:  time.Now().UTC(),
	}
	if len(parts) > 3 {
		evt.Email = parts[3]
	}
	h.sink.Publish(r.Context(), evt)

	log.Printf("UNSUB campaign=%s contact=%s", evt.CampaignID, evt.ContactID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
		<h1>You have been unsubscribed</h1>
		<p>You will no longer receive emails from us.</p>
	</body></html>`))
}

// formPayload is the body of a form-submission tracking call, posted by
// the form collaborator after it stores the submission.
type formPayload struct {
	OrgID      string `json:"org_id"`
	ContactID  string `json:"contact_id"`
	CampaignID string `json:"campaign_id"`
	Email      string `json:"email"`
}

func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request) {
	var p formPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error":"bad payload"}`, http.StatusBadRequest)
		return
	}
	if p.OrgID == "" || p.ContactID == "" {
		http.Error(w, `{"error":"org_id and contact_id are required"}`, http.StatusBadRequest)
		return
	}

	evt := TrackingEvent{
		EventType:  EventFormSubmit,
		OrgID:      p.OrgID,
		ContactID:  p.ContactID,
		CampaignID: p.CampaignID,
		Email:      p.Email,
		IPAddress:  realIP(r),
		UserAgent:  r.UserAgent(),
		Timestamp:  time.Now().UTC(),
	}
	h.sink.Publish(r.Context(), evt)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"accepted"}`))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
