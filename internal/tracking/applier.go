package tracking

import (
	"context"
	"errors"

	"github.com/ignite/leadscore/internal/domain"
	"github.com/ignite/leadscore/internal/pkg/logger"
	"github.com/ignite/leadscore/internal/scoring"
	"github.com/ignite/leadscore/internal/suppression"
)

// conflictRetries bounds retries of a whole ApplyEvent call on an
// optimistic-lock conflict. Retrying is safe: the ledger append only
// happens on a successful commit.
const conflictRetries = 3

// Applier turns tracking events into scoring ledger entries. It is the
// shared backend of both the direct sink and the SQS consumer.
type Applier struct {
	engine *scoring.Engine
	supp   *suppression.Service // nil disables auto-suppression
}

// NewApplier creates an applier. supp may be nil.
func NewApplier(engine *scoring.Engine, supp *suppression.Service) *Applier {
	return &Applier{engine: engine, supp: supp}
}

// Apply scores one tracking event. An event type with no active rule is
// dropped with a debug log, never an error: tracking must not fail because
// scoring has no rule for it yet.
func (a *Applier) Apply(ctx context.Context, evt TrackingEvent) error {
	var err error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		_, err = a.engine.ApplyEvent(ctx, evt.OrgID, evt.ContactID, evt.ScoreEventType(), evt.Timestamp)
		if !errors.Is(err, scoring.ErrConflict) {
			break
		}
	}
	if errors.Is(err, scoring.ErrUnknownRule) {
		logger.Debug("tracking event dropped: no active rule",
			"event_type", string(evt.EventType), "contact_id", evt.ContactID)
		err = nil
	}
	if err != nil {
		return err
	}

	if evt.EventType == EventUnsubscribe && a.supp != nil && evt.Email != "" {
		if _, serr := a.supp.Add(ctx, evt.Email, domain.SuppressUnsubscribe, evt.CampaignID, ""); serr != nil {
			logger.Warn("auto-suppression failed", "email", evt.Email, "error", serr.Error())
		}
	}
	return nil
}

// DirectSink applies tracking events synchronously, for deployments
// without an SQS queue between the tracking edge and the engine.
type DirectSink struct {
	applier *Applier
}

// NewDirectSink creates a sink that scores events in-process.
func NewDirectSink(applier *Applier) *DirectSink {
	return &DirectSink{applier: applier}
}

func (s *DirectSink) Publish(ctx context.Context, evt TrackingEvent) {
	if err := s.applier.Apply(ctx, evt); err != nil {
		logger.Error("tracking event scoring failed",
			"event_type", string(evt.EventType), "contact_id", evt.ContactID,
			"error", err.Error())
	}
}
