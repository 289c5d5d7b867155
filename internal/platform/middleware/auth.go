// Package middleware holds HTTP middleware shared by the transport layer.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"mailscout/pkg/platform/httputil"
)

// TokenValidator checks a bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Principal, error)
}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	TokenID string
}

type contextKeyPrincipal struct{}

// GetPrincipal returns the caller RequireBearer authenticated, or nil.
func GetPrincipal(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextKeyPrincipal{}).(*Principal)
	return p
}

// RequireBearer rejects requests without a valid "Authorization: Bearer" token.
// A nil validator disables the check.
func RequireBearer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := chimw.GetReqID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, httputil.NewError(httputil.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			p, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, httputil.NewError(httputil.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, contextKeyPrincipal{}, p)))
		})
	}
}
