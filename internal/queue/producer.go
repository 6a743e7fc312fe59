package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// JSONPublisher sends a JSON document to a named queue
type JSONPublisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// Producer publishes scoring events to the event queue
type Producer struct {
	conn JSONPublisher
}

// NewProducer creates a new queue producer
func NewProducer(conn JSONPublisher) *Producer {
	return &Producer{conn: conn}
}

// Publish sends each event as its own message. It stops at the first failure.
func (p *Producer) Publish(ctx context.Context, events ...domain.Event) error {
	for _, event := range events {
		msg, err := NewEventMessage(event)
		if err != nil {
			return err
		}

		if err := p.conn.PublishJSON(ctx, EventQueueName, msg); err != nil {
			return fmt.Errorf("failed to publish %s event: %w", msg.Type, err)
		}

		slog.Debug("published scoring event",
			"event_id", msg.ID,
			"type", msg.Type,
			"user_id", msg.UserID,
			"score", msg.Score,
		)
	}
	return nil
}

var _ domain.EventPublisher = (*Producer)(nil)

// FanOut publishes to several publishers in order. Every publisher is tried;
// the first error is returned.
type FanOut []domain.EventPublisher

// Publish implements domain.EventPublisher
func (f FanOut) Publish(ctx context.Context, events ...domain.Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, events...); err != nil && first == nil {
			first = err
		}
	}
	return first
}
