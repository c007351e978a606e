// Package ratelimit caps how many ledger writes one caller can make per
// sliding window. Authenticated callers are keyed by principal, credential
// routes by client IP.
package ratelimit

import (
	"context"
	"time"
)

// Limit is a request budget over a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set only when denied
}

// Store records requests and decides whether another one fits the window.
type Store interface {
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

func retryAfter(now, resetAt time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
