package publisher

import (
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/google/uuid"
)

type EventType string

const (
	EventSessionCreated   EventType = "checkout.session.created"
	EventSessionExpired   EventType = "checkout.session.expired"
	EventSessionCompleted EventType = "checkout.session.completed"
	EventSessionCleared   EventType = "checkout.session.cleared"
)

// SessionEvent is one checkout session lifecycle change.
type SessionEvent struct {
	ID         string              `json:"event_id"`
	Type       EventType           `json:"event_type"`
	SessionID  string              `json:"session_id"`
	UserID     string              `json:"user_id"`
	ProductIDs []string            `json:"product_ids,omitempty"`
	Summary    *domain.CartSummary `json:"summary,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func NewSessionEvent(t EventType, session *domain.CheckoutSession, at time.Time) SessionEvent {
	summary := session.Summary
	return SessionEvent{
		ID:         uuid.NewString(),
		Type:       t,
		SessionID:  session.ID,
		UserID:     session.UserID,
		ProductIDs: session.ProductIDs(),
		Summary:    &summary,
		OccurredAt: at,
	}
}
