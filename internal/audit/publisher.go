package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store persists audit events. Append-only; nothing is ever deleted.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor string) ([]Event, error)
}

// Sink receives a best-effort copy of every event, e.g. a Kafka topic for
// downstream compliance consumers.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. The store write is fail-closed:
// if the event cannot be persisted the calling operation must not proceed.
// Sink delivery is best-effort and only logged on failure.
type Publisher struct {
	store  Store
	sink   Sink
	queue  chan<- Event
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithSink attaches a best-effort downstream sink, published synchronously
// on the operation path.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		p.sink = sink
	}
}

// WithQueue hands sink delivery to a Worker draining the channel. When the
// queue is full the event is dropped for delivery; the store still holds it.
func WithQueue(queue chan<- Event) Option {
	return func(p *Publisher) {
		p.queue = queue
	}
}

func NewPublisher(store Store, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, event); err != nil {
		return err
	}

	if p.queue != nil {
		select {
		case p.queue <- event:
		default:
			p.logger.WarnContext(ctx, "audit delivery queue full, event not forwarded",
				"event_id", event.ID,
				"action", event.Action,
			)
		}
	} else if p.sink != nil {
		if err := p.sink.Publish(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink publish failed",
				"event_id", event.ID,
				"action", event.Action,
				"error", err,
			)
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, actor string) ([]Event, error) {
	return p.store.ListByActor(ctx, actor)
}
