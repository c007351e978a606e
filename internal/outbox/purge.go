package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger removes published entries older than a retention window.
type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (int, error)
}

// PurgeScheduler runs retention purges on a cron schedule.
type PurgeScheduler struct {
	cron      *cron.Cron
	purger    Purger
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewPurgeScheduler accepts standard five-field expressions and descriptors
// such as "@hourly" or "@every 30m".
func NewPurgeScheduler(purger Purger, schedule string, retention time.Duration, logger *slog.Logger) (*PurgeScheduler, error) {
	s := &PurgeScheduler{
		cron:      cron.New(),
		purger:    purger,
		retention: retention,
		timeout:   time.Minute,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for a
// running purge to finish.
func (s *PurgeScheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "outbox purge scheduler started", "retention", s.retention.String())
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *PurgeScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.purger.Purge(ctx, s.retention); err != nil {
		s.logger.ErrorContext(ctx, "outbox purge failed", "error", err)
	}
}
