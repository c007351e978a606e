package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/circuit"
	"offsetledger/pkg/platform/httputil"
	"offsetledger/pkg/requestcontext"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	// HeaderStatus is "degraded" while answers come from the fallback store.
	HeaderStatus = "X-RateLimit-Status"
)

var rejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "offsetledger_ratelimit_rejected_total",
	Help: "Write requests rejected by the rate limiter",
}, []string{"key_type"})

// Middleware enforces one Limit on every request it wraps.
type Middleware struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	limit    Limit
	logger   *slog.Logger
}

type Option func(*Middleware)

// WithFallback serves checks from fallback while breaker is open.
func WithFallback(fallback Store, breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.fallback = fallback
		m.breaker = breaker
	}
}

func New(primary Store, limit Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{primary: primary, limit: limit, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key, keyType := callerKey(r)

		result, degraded, err := m.check(r, key)
		if err != nil {
			// Fail open: the ledger stays available when the limiter is not.
			m.logger.ErrorContext(ctx, "rate limit check failed",
				"error", err,
				"key_type", keyType,
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set(HeaderLimit, strconv.Itoa(result.Limit))
		h.Set(HeaderRemaining, strconv.Itoa(result.Remaining))
		h.Set(HeaderReset, strconv.FormatInt(result.ResetAt.Unix(), 10))
		if degraded {
			h.Set(HeaderStatus, "degraded")
		}

		if !result.Allowed {
			rejected.WithLabelValues(keyType).Inc()
			h.Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many write requests, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// check asks primary first. With a fallback configured, primary failures
// count against the breaker and the fallback answers once it opens.
func (m *Middleware) check(r *http.Request, key string) (*Result, bool, error) {
	ctx := r.Context()
	result, err := m.primary.Allow(ctx, key, m.limit)
	if m.breaker == nil {
		return result, false, err
	}
	if err != nil {
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store circuit opened", "breaker", m.breaker.Name(), "error", err)
		}
		if !useFallback {
			return nil, false, err
		}
		result, err = m.fallback.Allow(ctx, key, m.limit)
		return result, true, err
	}
	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.InfoContext(ctx, "rate limit store circuit closed", "breaker", m.breaker.Name())
	}
	if !usePrimary {
		result, err = m.fallback.Allow(ctx, key, m.limit)
		return result, true, err
	}
	return result, false, nil
}

func callerKey(r *http.Request) (key, keyType string) {
	ctx := r.Context()
	if p := requestcontext.Principal(ctx); !p.IsZero() {
		return "p:" + string(p), "principal"
	}
	return "ip:" + requestcontext.ClientIP(ctx), "ip"
}
