package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/httputil"
	request "offsetledger/pkg/platform/middleware/request"
	"offsetledger/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims the middleware needs from a validated token
type JWTClaims struct {
	Principal string
	JTI       string
}

// GetPrincipal retrieves the authenticated principal from the context
func GetPrincipal(r *http.Request) id.PrincipalID {
	return requestcontext.Principal(r.Context())
}

// RequireAuth admits requests carrying a valid bearer token and stores its
// principal in the context. The principal is the caller for every ledger
// operation the request performs.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			principal, err := id.ParsePrincipalID(claims.Principal)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed principal",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
