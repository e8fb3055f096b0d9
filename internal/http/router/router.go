package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/drugorders/identity-service/internal/health"
	"github.com/drugorders/identity-service/internal/http/handler"
	"github.com/drugorders/identity-service/internal/http/middleware"
	"github.com/drugorders/identity-service/internal/http/response"
	"github.com/drugorders/identity-service/internal/service"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	UserHandler      *handler.UserHandler
	AdminHandler     *handler.AdminHandler
	Resolver         service.IdentityResolverInterface
	CORSOrigins      []string
	AuthRateLimitRPM int
	Readiness        *health.ProbeRunner
	EnableOTelHTTP   bool

	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the peer
	// address used by the rate limiter and the login guard.
	TrustProxyHeaders bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	if dep.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(64 << 10))

	authLimiter := middleware.NewRateLimiterWithKey("auth", dep.AuthRateLimitRPM, time.Minute, nil).Middleware()

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ResolveIdentity(dep.Resolver))

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(middleware.RequireAuthenticated).Post("/logout", dep.AuthHandler.Logout)
			r.With(middleware.RequireAuthenticated).Post("/tokens/revoke-all", dep.AuthHandler.RevokeAllTokens)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthenticated)
			r.Get("/me", dep.UserHandler.Me)
			r.Get("/users/{id}", dep.UserHandler.Get)
			r.Put("/users/{id}", dep.UserHandler.Update)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/users", dep.AdminHandler.ListUsers)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
