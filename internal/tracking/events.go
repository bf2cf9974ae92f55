// Package tracking is the engagement ingestion surface: open-pixel, click
// redirect and form submission handlers that feed the scoring engine.
// Events either go through SQS (publisher + consumer, for deployments with
// multiple tracking hosts) or straight into the engine (direct sink).
// Scoring failures are never allowed to break the caller's flow: a click
// still redirects, a pixel still renders.
package tracking

import (
	"context"
	"time"

	"github.com/ignite/leadscore/internal/domain"
)

// EventType identifies what kind of engagement was tracked.
type EventType string

const (
	EventOpen        EventType = "opened"
	EventClick       EventType = "clicked"
	EventFormSubmit  EventType = "form_submitted"
	EventUnsubscribe EventType = "unsubscribed"
)

// TrackingEvent is one engagement event captured at the HTTP edge.
type TrackingEvent struct {
	EventType  EventType `json:"event_type"`
	OrgID      string    `json:"org_id"`
	ContactID  string    `json:"contact_id"`
	CampaignID string    `json:"campaign_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	LinkURL    string    `json:"link_url,omitempty"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScoreEventType maps the tracked engagement to a scoring ledger event type.
func (e TrackingEvent) ScoreEventType() domain.ScoreEventType {
	switch e.EventType {
	case EventOpen:
		return domain.EventEmailOpen
	case EventClick:
		return domain.EventEmailClick
	case EventFormSubmit:
		return domain.EventFormSubmit
	case EventUnsubscribe:
		return domain.EventUnsubbed
	}
	return domain.ScoreEventType(e.EventType)
}

// Sink accepts tracking events for scoring. Implementations must not block
// the HTTP handler on downstream work.
type Sink interface {
	Publish(ctx context.Context, evt TrackingEvent)
}
