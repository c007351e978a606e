package testutil

import (
	"context"
	"net/http"
	"time"

	id "offsetledger/pkg/domain"
	"offsetledger/pkg/requestcontext"
)

// WithPrincipal adds an authenticated principal to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// Invalid principals are not added.
func WithPrincipal(req *http.Request, principal string) *http.Request {
	if p, err := id.ParsePrincipalID(principal); err == nil {
		return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
	}
	return req
}

// WithRequestTime pins the ledger time seen by the handler.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
