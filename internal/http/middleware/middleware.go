// Package middleware holds the security gate applied to authenticated
// routes: session verification, origin checks and rate limiting.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/openbill/openbill/internal/auth"
	"github.com/openbill/openbill/internal/http/respond"
	"github.com/openbill/openbill/internal/ratelimit"
)

// Auth verifies the Bearer session token and stores the user id on the
// request context.
func Auth(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				respond.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := tokens.Verify(raw)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid session")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

// RequireOrigin rejects mutating cross-origin requests whose Origin
// header is not on the allow list. Requests without an Origin header
// (curl, server-to-server) pass through.
func RequireOrigin(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
				origin := r.Header.Get("Origin")
				if origin != "" && !slices.Contains(allowed, origin) {
					respond.Error(w, http.StatusForbidden, "origin not allowed")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit caps requests per user for the named action. The check
// fails open: a rate-limit store error is logged and the request is
// allowed through rather than blocking business operations.
func RateLimit(limiter *ratelimit.Limiter, action string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserIDFrom(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "missing session")
				return
			}

			res, err := limiter.Allow(r.Context(), fmt.Sprintf("%s:%s", userID, action), limit, window)
			if err != nil {
				slog.Warn("rate limit check failed", "action", action, "error", err)
				next.ServeHTTP(w, r)

				return
			}

			if !res.Allowed {
				respond.RateLimited(w, res.ResetAt)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
