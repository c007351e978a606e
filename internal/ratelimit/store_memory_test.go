package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	now   time.Time
	limit Limit
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.store = NewMemoryStore()
	s.store.clock = func() time.Time { return s.now }
	s.limit = Limit{Requests: 3, Window: time.Minute}
}

func (s *MemoryStoreSuite) allow(key string) *Result {
	res, err := s.store.Allow(context.Background(), key, s.limit)
	s.Require().NoError(err)
	return res
}

func (s *MemoryStoreSuite) TestAllowsUpToLimit() {
	for want := 2; want >= 0; want-- {
		res := s.allow("alice")
		s.True(res.Allowed)
		s.Equal(want, res.Remaining)
		s.Equal(3, res.Limit)
	}

	res := s.allow("alice")
	s.False(res.Allowed)
	s.Equal(60, res.RetryAfter)
	s.Equal(s.now.Add(time.Minute), res.ResetAt)
}

func (s *MemoryStoreSuite) TestKeysAreIndependent() {
	for range 3 {
		s.allow("alice")
	}
	s.True(s.allow("bob").Allowed)
}

func (s *MemoryStoreSuite) TestWindowSlides() {
	s.allow("alice")
	s.now = s.now.Add(30 * time.Second)
	s.allow("alice")
	s.allow("alice")
	s.False(s.allow("alice").Allowed)

	// The first request leaves the window; one slot frees up.
	s.now = s.now.Add(31 * time.Second)
	res := s.allow("alice")
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)
	s.False(s.allow("alice").Allowed)
}

func (s *MemoryStoreSuite) TestSweepForgetsIdleKeys() {
	s.allow("idle")
	s.now = s.now.Add(2 * time.Minute)
	s.store.mu.Lock()
	s.store.sweep(s.now)
	_, present := s.store.windows["idle"]
	s.store.mu.Unlock()
	s.False(present)
}

func (s *MemoryStoreSuite) TestConcurrentCallersNeverExceedLimit() {
	s.limit = Limit{Requests: 50, Window: time.Minute}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(context.Background(), "shared", s.limit)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(50, allowed)
}
