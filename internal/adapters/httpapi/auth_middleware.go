package httpapi

import (
	"net/http"
	"strings"

	"github.com/shared-wheels/carpool-ledger-api/internal/app/members"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/identity"
)

// NewAuthMiddleware enforces Authorization: Bearer <credential> for all API
// endpoints. On success the resolved identity is registered as a member (a
// no-op after first login) and the member is stored on the request context.
func NewAuthMiddleware(resolver identity.Resolver, registrar *members.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}

			ident, err := resolver.Resolve(r.Context(), raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}
			m, err := registrar.EnsureRegistered(r.Context(), ident)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), m)))
		})
	}
}

// NewDevAuthMiddleware is a local-only auth shim: the caller picks a subject
// via X-Debug-Subject and the resolver's default fills the gap. Do NOT use
// this in production deployments.
func NewDevAuthMiddleware(resolver identity.Resolver, registrar *members.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := resolver.Resolve(r.Context(), r.Header.Get("X-Debug-Subject"))
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject (set X-Debug-Subject)", nil)
				return
			}
			m, err := registrar.EnsureRegistered(r.Context(), ident)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), m)))
		})
	}
}
