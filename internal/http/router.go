// Package httpapi assembles the server's router: shared middleware, ops
// endpoints and the ledger API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"offsetledger/internal/platform/config"
	"offsetledger/internal/platform/metrics"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/httputil"
	"offsetledger/pkg/platform/middleware/admin"
	"offsetledger/pkg/platform/middleware/metadata"
	request "offsetledger/pkg/platform/middleware/request"
	"offsetledger/pkg/platform/middleware/requesttime"
)

// Registrar mounts a group of API routes.
type Registrar interface {
	Register(r chi.Router)
}

// OutboxOperator exposes manual relay controls to operators.
type OutboxOperator interface {
	Drain(ctx context.Context) (int, error)
	Purge(ctx context.Context, retention time.Duration) (int, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router needs. Nil Metrics, Gatherer or Outbox turn
// the matching endpoints off.
type Deps struct {
	Server          config.Server
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer
	AdminToken      string
	Outbox          OutboxOperator
	OutboxRetention time.Duration
	Health          map[string]HealthCheck
	APIs            []Registrar
}

// NewRouter wires middleware in the order requests need them: panics are
// caught first, request ids exist before anything logs, and the clock is
// pinned before handlers read it.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(d.Logger))
	r.Use(metrics.LatencyMiddleware(d.Metrics))
	if d.Server.RequestTimeout > 0 {
		r.Use(request.Timeout(d.Server.RequestTimeout))
	}
	r.Use(requesttime.Middleware)
	r.Use(request.ContentTypeJSON)
	if d.Server.MaxBodyBytes > 0 {
		r.Use(request.MaxBodySize(d.Server.MaxBodyBytes))
	}

	r.Get("/healthz", healthHandler(d.Health, d.Logger))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	if d.Outbox != nil {
		r.Route("/admin/outbox", func(ar chi.Router) {
			ar.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
			ar.Post("/drain", drainHandler(d.Outbox, d.Logger))
			ar.Post("/purge", purgeHandler(d.Outbox, d.OutboxRetention, d.Logger))
		})
	}

	for _, api := range d.APIs {
		api.Register(r)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}

type drainResponse struct {
	Published int `json:"published"`
}

type purgeResponse struct {
	Purged int `json:"purged"`
}

func drainHandler(op OutboxOperator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		n, err := op.Drain(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "manual outbox drain failed",
				"error", err,
				"published", n,
				"request_id", request.GetRequestID(ctx),
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "outbox drain failed"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, drainResponse{Published: n})
	}
}

func purgeHandler(op OutboxOperator, retention time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		n, err := op.Purge(ctx, retention)
		if err != nil {
			logger.ErrorContext(ctx, "manual outbox purge failed",
				"error", err,
				"request_id", request.GetRequestID(ctx),
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "outbox purge failed"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, purgeResponse{Purged: n})
	}
}
