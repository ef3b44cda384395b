package domain

import "time"

// SessionTTL is how long a checkout session stays loadable after creation.
const SessionTTL = 30 * time.Minute

type SessionState string

const (
	SessionStateCreated   SessionState = "CREATED"
	SessionStateBlocked   SessionState = "BLOCKED"
	SessionStateCompleted SessionState = "COMPLETED"
	SessionStateExpired   SessionState = "EXPIRED"
	SessionStateCleared   SessionState = "CLEARED"
)

func (s SessionState) IsTerminal() bool {
	return s == SessionStateCompleted || s == SessionStateExpired || s == SessionStateCleared
}

// String representation (for logging)
func (s SessionState) String() string {
	return string(s)
}

// CheckoutSession is the immutable payload handed from the cart to the checkout flow.
type CheckoutSession struct {
	ID        string         `json:"session_id" bson:"_id"`
	UserID    string         `json:"user_id" bson:"user_id"`
	Items     []SnapshotItem `json:"items" bson:"items"`
	Summary   CartSummary    `json:"summary" bson:"summary"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time      `json:"expires_at" bson:"expires_at"`
	Validated bool           `json:"validated" bson:"validated"`
}

func (s *CheckoutSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *CheckoutSession) ProductIDs() []string {
	ids := make([]string, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.ProductID
	}
	return ids
}

func (s *CheckoutSession) Clone() *CheckoutSession {
	out := *s
	out.Items = append([]SnapshotItem(nil), s.Items...)
	return &out
}
