// Package idempotency replays the stored response when a client retries a
// mutating request with the same Idempotency-Key. A retried Buy or Mint after
// a dropped connection returns the original outcome instead of a second
// NotFound or DuplicateVerification.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Response is a captured HTTP response.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Store persists responses by key for a bounded time.
type Store interface {
	Get(ctx context.Context, key string) (*Response, bool, error)
	// Put stores resp unless key already holds a response.
	Put(ctx context.Context, key string, resp Response) error
}

// MemoryStore keeps responses in an expiring LRU. Single-instance only.
// The check and add in Put are not atomic; the middleware's singleflight
// group already serializes writers of one key.
type MemoryStore struct {
	cache *expirable.LRU[string, Response]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: expirable.NewLRU[string, Response](size, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Response, bool, error) {
	resp, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return &resp, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, resp Response) error {
	if !s.cache.Contains(key) {
		s.cache.Add(key, resp)
	}
	return nil
}

// RedisStore shares responses across instances.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "offsetledger:idem:", ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Response, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency get: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("idempotency decode: %w", err)
	}
	return &resp, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, resp Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("idempotency encode: %w", err)
	}
	if err := s.client.SetNX(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency put: %w", err)
	}
	return nil
}

// cacheable reports whether a response should be replayed. Server failures
// and timeouts are retried for real.
func cacheable(status int) bool {
	return status < http.StatusInternalServerError
}
