package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultCapacity  = 1000
	defaultBatchSize = 100
)

type queued struct {
	seq   uint64
	event SessionEvent
}

// Outbox buffers session events in memory and ships them to Kafka on a ticker.
// Publish never blocks on the broker; events that fail to send stay queued and are
// retried on the next tick.
type Outbox struct {
	mu        sync.Mutex
	pending   []queued
	seq       uint64
	capacity  int
	batchSize int
	eventTick time.Duration
	timeout   time.Duration
	writer    MessageWriter
	logger    *zap.Logger
}

func NewOutbox(writer MessageWriter, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{
		capacity:  defaultCapacity,
		batchSize: defaultBatchSize,
		eventTick: time.Second,
		timeout:   5 * time.Second,
		writer:    writer,
		logger:    logger,
	}
}

// Publish queues event. When the queue is full the oldest event is dropped.
func (o *Outbox) Publish(_ context.Context, event SessionEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.pending) >= o.capacity {
		dropped := o.pending[0].event
		o.pending = o.pending[1:]
		o.logger.Warn("outbox full, dropping oldest event",
			zap.String("event_id", dropped.ID),
			zap.String("event_type", string(dropped.Type)))
	}
	o.seq++
	o.pending = append(o.pending, queued{seq: o.seq, event: event})
	return nil
}

func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

func (o *Outbox) Run(ctx context.Context) {
	eventTicker := time.NewTicker(o.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			if err := o.Flush(ctx); err != nil {
				o.logger.Warn("failed to publish session events", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Flush sends up to one batch of queued events. Sent events leave the queue only
// after the broker acknowledged them.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	n := min(len(o.pending), o.batchSize)
	batch := append([]queued(nil), o.pending[:n]...)
	o.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(batch))
	for _, q := range batch {
		msg, err := toMessage(q.event)
		if err != nil {
			o.logger.Error("dropping unencodable event", zap.String("event_id", q.event.ID), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events: %w", len(msgs), err)
	}

	// events may have been dropped while the batch was in flight
	last := batch[len(batch)-1].seq
	o.mu.Lock()
	i := 0
	for i < len(o.pending) && o.pending[i].seq <= last {
		i++
	}
	o.pending = o.pending[i:]
	o.mu.Unlock()

	o.logger.Debug("published session events", zap.Int("count", len(msgs)))
	return nil
}

// Close sends what is still queued and closes the writer.
func (o *Outbox) Close(ctx context.Context) error {
	for o.Pending() > 0 {
		if err := o.Flush(ctx); err != nil {
			o.logger.Warn("undelivered session events on shutdown",
				zap.Int("count", o.Pending()), zap.Error(err))
			break
		}
	}
	return o.writer.Close()
}

func toMessage(event SessionEvent) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.SessionID), // session id keeps one session's events ordered
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}
