package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/httputil"
	"offsetledger/pkg/requestcontext"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLen      = 255
)

var replays = promauto.NewCounter(prometheus.CounterOpts{
	Name: "offsetledger_idempotent_replays_total",
	Help: "Responses served from the idempotency store",
})

// Middleware replays stored responses for repeated keys. Requests without
// the header pass through untouched. Concurrent requests with one key inside
// this process share a single execution.
type Middleware struct {
	store  Store
	logger *slog.Logger
	group  singleflight.Group
}

func New(store Store, logger *slog.Logger) *Middleware {
	return &Middleware{store: store, logger: logger}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderKey)
		if key == "" || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxKeyLen {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "idempotency key too long"))
			return
		}

		ctx := r.Context()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		scoped := scopeKey(r, key, body)

		stored, ok, err := m.store.Get(ctx, scoped)
		if err != nil {
			// A broken store must not block writes; the ledger still
			// rejects true duplicates on its own.
			m.logger.WarnContext(ctx, "idempotency lookup failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		if ok {
			replays.Inc()
			replay(w, stored, true)
			return
		}

		leader := false
		v, _, _ := m.group.Do(scoped, func() (any, error) {
			leader = true
			rec := &recorder{header: make(http.Header), status: http.StatusOK}
			req := r.Clone(ctx)
			req.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(rec, req)

			resp := Response{Status: rec.status, ContentType: rec.header.Get("Content-Type"), Body: rec.body.Bytes()}
			if cacheable(resp.Status) {
				if err := m.store.Put(ctx, scoped, resp); err != nil {
					m.logger.WarnContext(ctx, "idempotency store failed",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
			}
			return &resp, nil
		})
		// Callers that joined an in-flight execution get its response as a
		// replay, the same as a later retry would.
		if !leader {
			replays.Inc()
		}
		replay(w, v.(*Response), !leader)
	})
}

// scopeKey binds the client key to caller and route so one principal cannot
// read another's stored response. Routes without a principal (credential in
// the body) also bind the body, so only a caller holding the same credential
// gets the replay.
func scopeKey(r *http.Request, key string, body []byte) string {
	h := sha256.New()
	principal := requestcontext.Principal(r.Context())
	h.Write([]byte(principal))
	h.Write([]byte{0})
	h.Write([]byte(r.Method + " " + r.URL.Path))
	h.Write([]byte{0})
	h.Write([]byte(key))
	if principal.IsZero() {
		h.Write([]byte{0})
		h.Write(body)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func replay(w http.ResponseWriter, resp *Response, replayed bool) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	if replayed {
		w.Header().Set(HeaderReplayed, "true")
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (r *recorder) Header() http.Header         { return r.header }
func (r *recorder) WriteHeader(status int)      { r.status = status }
func (r *recorder) Write(b []byte) (int, error) { return r.body.Write(b) }
