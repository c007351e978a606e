package outbox

import (
	"context"
	"log/slog"
)

// LogPublisher writes entries to the structured log. It is the fallback when no
// broker is configured, which keeps single-node deployments observable.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		p.logger.InfoContext(ctx, "ledger event",
			"event_id", e.ID,
			"event_type", e.EventType,
			"aggregate_id", e.AggregateID,
			"payload", string(e.Payload),
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
