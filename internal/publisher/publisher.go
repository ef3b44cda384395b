package publisher

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic carries checkout session lifecycle events.
const DefaultTopic = "checkout-sessions"

// Publisher accepts session events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event SessionEvent) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, SessionEvent) error { return nil }

// MessageWriter is the part of *kafka.Writer the outbox needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}
