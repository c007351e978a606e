package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offsetledger_outbox_entries_published_total",
		Help: "Outbox entries delivered to the publisher",
	})
	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offsetledger_outbox_publish_failures_total",
		Help: "Relay batches that failed to publish",
	})
	entriesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offsetledger_outbox_entries_purged_total",
		Help: "Published outbox entries removed by retention",
	})
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Relay polls the outbox and publishes pending entries in creation order.
type Relay struct {
	source    Source
	publisher Publisher
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
	clock     func() time.Time
}

// Option configures the Relay.
type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(r *Relay) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRelay constructs a relay. logger must not be nil.
func NewRelay(source Source, publisher Publisher, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		logger:    logger,
		batchSize: defaultBatchSize,
		interval:  defaultPollInterval,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox until ctx is cancelled. Publish failures are logged and
// retried on the next tick; they never stop the loop.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain publishes batches until the outbox is empty or an error occurs.
// It returns the number of entries published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.publishBatch(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.batchSize {
			return total, nil
		}
	}
}

func (r *Relay) publishBatch(ctx context.Context) (int, error) {
	entries, err := r.source.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, entries); err != nil {
		publishFailures.Inc()
		return 0, err
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := r.source.MarkPublished(ctx, ids, r.clock()); err != nil {
		// Entries will be republished; consumers dedupe on ID.
		return 0, err
	}
	entriesPublished.Add(float64(len(entries)))
	r.logger.DebugContext(ctx, "outbox batch published", "count", len(entries))
	return len(entries), nil
}

// Purge removes entries published before now-retention.
func (r *Relay) Purge(ctx context.Context, retention time.Duration) (int, error) {
	n, err := r.source.PurgePublished(ctx, r.clock().Add(-retention))
	if err != nil {
		return 0, err
	}
	entriesPurged.Add(float64(n))
	if n > 0 {
		r.logger.InfoContext(ctx, "purged published outbox entries", "count", n)
	}
	return n, nil
}
