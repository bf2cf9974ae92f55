package scoring

import "errors"

// Sentinel errors for the scoring engine.
var (
	// ErrUnknownRule means the event type has no active scoring rule.
	// Callers decide whether to drop the event or surface the error; it is
	// never fatal to the caller's own flow.
	ErrUnknownRule = errors.New("no active scoring rule for event type")

	// ErrValidation rejects a manual adjustment before any ledger write.
	ErrValidation = errors.New("invalid scoring request")

	// ErrConflict is a version mismatch on contact_scores during a
	// concurrent mutation. The whole call is safe to retry: the ledger
	// append only happens on a successful commit.
	ErrConflict = errors.New("concurrent score update conflict")
)
