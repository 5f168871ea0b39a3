package middleware

import (
	"net/http"
	"slices"

	"marketplace-catalog/internal/auth"
	"marketplace-catalog/internal/logger"
	"marketplace-catalog/internal/transport"

	"go.uber.org/zap"
)

// AuthMiddleware attaches the caller's Principal when a valid access token
// is present. Requests without one, or with a bad one, go through anonymous.
func AuthMiddleware(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := v.Verify(tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("ignoring invalid access token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole answers 401 without a principal and 403 when its role is not
// one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				transport.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, p.Role) {
				transport.WriteJSONError(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
