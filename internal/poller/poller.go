package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/feedback"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic   = "order-events"
	DefaultGroupID = "storefront-cart-consumer"

	EventOrderCompleted = "order.completed"
)

// OrderEvent is what the order service emits once an order was placed from a checkout session.
type OrderEvent struct {
	EventType string `json:"event_type"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	OrderID   string `json:"order_id,omitempty"`
}

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// SessionCompleter consumes a checkout session.
type SessionCompleter interface {
	CompleteCheckoutSession(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error)
}

// Poller completes checkout sessions when the order service reports a placed order.
type Poller struct {
	completer SessionCompleter
	reader    Reader
	backoff   time.Duration
	logger    *zap.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPoller(completer SessionCompleter, reader Reader, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{completer: completer, reader: reader, backoff: time.Second, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

// poll handles one message. Only read errors are returned; bad or unrelated
// messages are logged and skipped.
func (p *Poller) poll(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	var event OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.logger.Warn("error parsing message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if event.EventType != EventOrderCompleted {
		return nil
	}
	if event.SessionID == "" || event.UserID == "" {
		p.logger.Warn("order event without session or user", zap.Int64("offset", m.Offset))
		return nil
	}

	_, err = p.completer.CompleteCheckoutSession(ctx, event.UserID, event.SessionID)
	switch {
	case err == nil:
		p.logger.Info("checkout session completed from order event",
			zap.String("session_id", event.SessionID),
			zap.String("order_id", event.OrderID))
	case feedback.IsType(err, feedback.TypeValidation):
		// redelivered or already expired
		p.logger.Debug("order event for unknown session",
			zap.String("session_id", event.SessionID), zap.Error(err))
	default:
		p.logger.Error("failed to complete checkout session",
			zap.String("session_id", event.SessionID),
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
	return nil
}
