package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offsetledger/pkg/platform/circuit"
)

// flakyStore wraps a MemoryStore and fails while down is set.
type flakyStore struct {
	inner *MemoryStore
	down  atomic.Bool
}

func (s *flakyStore) Get(ctx context.Context, key string) (*Response, bool, error) {
	if s.down.Load() {
		return nil, false, errors.New("connection refused")
	}
	return s.inner.Get(ctx, key)
}

func (s *flakyStore) Put(ctx context.Context, key string, resp Response) error {
	if s.down.Load() {
		return errors.New("connection refused")
	}
	return s.inner.Put(ctx, key, resp)
}

func newFallback(t *testing.T) (*FallbackStore, *flakyStore, *MemoryStore, *circuit.Breaker) {
	t.Helper()
	primary := &flakyStore{inner: NewMemoryStore(10, time.Minute)}
	fallback := NewMemoryStore(10, time.Minute)
	breaker := circuit.New("idempotency", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(2))
	return NewFallbackStore(primary, fallback, breaker, slog.New(slog.DiscardHandler)), primary, fallback, breaker
}

func TestFallbackStoreHealthyUsesPrimary(t *testing.T) {
	s, primary, fallback, _ := newFallback(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", Response{Status: 201}))

	_, inPrimary, _ := primary.Get(ctx, "k")
	_, inFallback, _ := fallback.Get(ctx, "k")
	assert.True(t, inPrimary)
	assert.False(t, inFallback)
}

func TestFallbackStoreErrorsBeforeThreshold(t *testing.T) {
	s, primary, _, breaker := newFallback(t)
	primary.down.Store(true)

	_, _, err := s.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, breaker.IsOpen())
}

func TestFallbackStoreOpensAndRecovers(t *testing.T) {
	s, primary, fallback, breaker := newFallback(t)
	ctx := context.Background()
	primary.down.Store(true)

	_, _, _ = s.Get(ctx, "k")
	require.NoError(t, s.Put(ctx, "k", Response{Status: 409}), "second failure opens the circuit")
	require.True(t, breaker.IsOpen())

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 409, got.Status)
	_, inFallback, _ := fallback.Get(ctx, "k")
	assert.True(t, inFallback)

	primary.down.Store(false)
	_, _, err = s.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, breaker.IsOpen(), "one success is not enough")
	_, _, err = s.Get(ctx, "other")
	require.NoError(t, err)
	assert.False(t, breaker.IsOpen())
}
