package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/http/response"
	"github.com/drugorders/identity-service/internal/service"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

// ResolveIdentity runs the resolver once per request and stores the result in
// the context. Anonymous callers pass through; a store outage ends the request
// with 503.
func ResolveIdentity(resolver service.IdentityResolverInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				if domain.IsStoreUnavailable(err) {
					response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "identity store unavailable", nil)
					return
				}
				slog.ErrorContext(r.Context(), "identity resolution failed", "error", err.Error())
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "identity resolution failed", nil)
				return
			}
			ctx := context.WithValue(r.Context(), IdentityContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the resolved identity, or anonymous when the
// resolver did not run.
func IdentityFromContext(ctx context.Context) domain.Identity {
	id, ok := ctx.Value(IdentityContextKey).(domain.Identity)
	if !ok {
		return domain.Anonymous()
	}
	return id
}

func RequireAuthenticated(next http.Handler) http.Handler {
	return require(domain.IsAuthenticated, next)
}

func RequireManager(next http.Handler) http.Handler {
	return require(domain.IsManager, next)
}

func RequireAdmin(next http.Handler) http.Handler {
	return require(domain.IsAdmin, next)
}

func require(pred func(domain.Identity) bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if !domain.IsAuthenticated(id) {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		if !pred(id) {
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient privileges", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
