package idempotency

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"offsetledger/pkg/platform/circuit"
)

var storeDegraded = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "offsetledger_idempotency_store_degraded",
	Help: "1 while the idempotency store serves from the in-process fallback",
})

// FallbackStore calls primary on every request. Once the breaker opens, the
// in-process fallback answers until primary has succeeded enough times to
// close the circuit again.
type FallbackStore struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackStore(primary, fallback Store, breaker *circuit.Breaker, logger *slog.Logger) *FallbackStore {
	return &FallbackStore{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *FallbackStore) Get(ctx context.Context, key string) (*Response, bool, error) {
	resp, ok, err := s.primary.Get(ctx, key)
	if err != nil {
		if s.failed(ctx, err) {
			return s.fallback.Get(ctx, key)
		}
		return nil, false, err
	}
	if !s.succeeded(ctx) {
		return s.fallback.Get(ctx, key)
	}
	return resp, ok, nil
}

func (s *FallbackStore) Put(ctx context.Context, key string, resp Response) error {
	err := s.primary.Put(ctx, key, resp)
	if err != nil {
		if s.failed(ctx, err) {
			return s.fallback.Put(ctx, key, resp)
		}
		return err
	}
	if !s.succeeded(ctx) {
		return s.fallback.Put(ctx, key, resp)
	}
	return nil
}

func (s *FallbackStore) failed(ctx context.Context, err error) bool {
	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		storeDegraded.Set(1)
		s.logger.WarnContext(ctx, "idempotency store circuit opened, using in-process fallback",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
	return useFallback
}

// succeeded reports whether primary is authoritative again.
func (s *FallbackStore) succeeded(ctx context.Context) bool {
	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		storeDegraded.Set(0)
		s.logger.InfoContext(ctx, "idempotency store circuit closed", "breaker", s.breaker.Name())
	}
	return usePrimary
}
