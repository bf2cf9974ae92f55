package domain

import "time"

// SuppressionReason enumerates why an email address must not be contacted.
type SuppressionReason string

const (
	SuppressBounce      SuppressionReason = "bounce"
	SuppressComplaint   SuppressionReason = "complaint"
	SuppressUnsubscribe SuppressionReason = "unsubscribe"
	SuppressManual      SuppressionReason = "manual"
	SuppressCompliance  SuppressionReason = "compliance"
)

// Suppression is a global do-not-contact entry. It gates outbound sends in
// the surrounding platform; it plays no part in scoring math.
type Suppression struct {
	ID        string            `json:"id" db:"id"`
	Email     string            `json:"email" db:"email"`
	Reason    SuppressionReason `json:"reason" db:"reason"`
	Source    string            `json:"source" db:"source"` // campaign_id, import, manual
	Notes     string            `json:"notes" db:"notes"`
	Active    bool              `json:"active" db:"active"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}
