package rules

import "errors"

// Sentinel errors for the rule store.
var (
	ErrNotFound        = errors.New("scoring rule not found")
	ErrDuplicateActive = errors.New("an active rule already exists for this event type")
	ErrReservedType    = errors.New("event type is reserved for the scoring engine")
)
