package middleware

import (
	"context"
	"net/http"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/application/authorizer"
)

type contextKey string

const userContextKey contextKey = "userContext"

// Authorize guards protected routes with the request authorizer. Denied
// requests get a generic unauthorized body; the denial detail stays in logs.
func Authorize(svc authorizer.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := svc.Authorize(r.Context(), r.Header.Get("Authorization"), r.Header.Get("Cookie"))
			if !d.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"unauthorized"}`))
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, d.Context)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserContextFrom extracts the authorizer's string-typed user context.
func UserContextFrom(ctx context.Context) (map[string]string, bool) {
	m, ok := ctx.Value(userContextKey).(map[string]string)
	return m, ok
}
