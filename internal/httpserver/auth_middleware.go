package httpserver

import (
	"context"
	"net/http"
	"strings"

	"chat_backend/internal/security"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// WithUser returns a new context carrying the current user identity.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// CurrentUser extracts the current user identity from context, if any.
func CurrentUser(r *http.Request) string {
	if v, ok := r.Context().Value(userContextKey).(string); ok {
		return v
	}
	return ""
}

// AuthMiddleware validates the Bearer token and attaches its subject to the
// context. With trustHeader set, a request without a token may name itself
// through X-User-ID instead.
func AuthMiddleware(tokens *security.TokenService, trustHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				if uid := strings.TrimSpace(r.Header.Get("X-User-ID")); trustHeader && uid != "" {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid)))
					return
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid Authorization header"})
				return
			}
			if tokens == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token auth not configured"})
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			sub, err := tokens.Subject(tokenStr)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), sub)))
		})
	}
}
