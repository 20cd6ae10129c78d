package audit

import (
	"context"
	"log/slog"
)

// Worker drains the publisher's delivery queue and forwards events to the
// downstream sink. Delivery stays off the operation path: the fail-closed
// store write happens synchronously in Emit, while broker latency and
// outages only surface here as warnings.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run delivers queued events until the context is canceled. Sink failures
// are logged and skipped; the store already holds the authoritative record.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit sink delivery failed",
					"event_id", event.ID,
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
