package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

// MemoryStore is a per-process sliding window. It backs single-node
// deployments and stands in for Redis while that circuit is open.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	calls   int
	clock   func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*slidingWindow), clock: time.Now}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now)
	}

	w := s.windows[key]
	if w == nil {
		w = &slidingWindow{window: limit.Window}
		s.windows[key] = w
	}
	w.trim(now)

	if len(w.timestamps) >= limit.Requests {
		resetAt := w.timestamps[0].Add(limit.Window)
		return &Result{
			Allowed:    false,
			Limit:      limit.Requests,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(now, resetAt),
		}, nil
	}

	w.timestamps = append(w.timestamps, now)
	return &Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - len(w.timestamps),
		ResetAt:   w.timestamps[0].Add(limit.Window),
	}, nil
}

// trim drops timestamps that left the window.
func (w *slidingWindow) trim(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}

// sweep forgets idle callers. Must hold s.mu.
func (s *MemoryStore) sweep(now time.Time) {
	for key, w := range s.windows {
		w.trim(now)
		if len(w.timestamps) == 0 {
			delete(s.windows, key)
		}
	}
}
