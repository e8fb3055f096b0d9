package di

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drugorders/identity-service/internal/config"
	"github.com/drugorders/identity-service/internal/health"
	"github.com/drugorders/identity-service/internal/http/handler"
	"github.com/drugorders/identity-service/internal/http/router"
	"github.com/drugorders/identity-service/internal/observability"
	"github.com/drugorders/identity-service/internal/repository"
	"github.com/drugorders/identity-service/internal/security"
	"github.com/drugorders/identity-service/internal/service"
	"github.com/drugorders/identity-service/internal/store"
)

const loginGuardPrefix = "login_guard"

func provideLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

func provideObservability(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*observability.Runtime, func(), error) {
	rt, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(rt.Logger(logger))
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Shutdown(shutdownCtx)
	}
	return rt, cleanup, nil
}

func provideStoreOptions(cfg *config.Config) store.Options {
	return store.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisReadTimeout,
		WriteTimeout: cfg.RedisWriteTimeout,
		PoolSize:     cfg.RedisPoolSize,
		MaxRetries:   cfg.RedisMaxRetries,
	}
}

// provideStoreClient refuses to start without a reachable store.
func provideStoreClient(ctx context.Context, opts store.Options, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	client, err := store.Connect(ctx, opts, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func provideScriptExecutor(ctx context.Context, client redis.UniversalClient) (*store.ScriptExecutor, error) {
	exec := store.NewScriptExecutor(client)
	if err := exec.Load(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

func providePasswordHasher(cfg *config.Config) (*security.PasswordHasher, error) {
	return security.NewPasswordHasher(security.HashScheme(cfg.PasswordHashScheme), cfg.PasswordBcryptCost)
}

func provideSessionRepository(exec *store.ScriptExecutor, cfg *config.Config) *repository.RedisSessionRepository {
	return repository.NewSessionRepository(exec, cfg.SessionTTL)
}

func provideTokenRepository(exec *store.ScriptExecutor, cfg *config.Config) *repository.RedisTokenRepository {
	return repository.NewTokenRepository(exec, cfg.TokenTTL)
}

func provideLoginGuard(exec *store.ScriptExecutor, cfg *config.Config) service.LoginGuard {
	if !cfg.LoginGuardEnabled {
		return service.NewNoopLoginGuard()
	}
	return service.NewRedisLoginGuard(exec, loginGuardPrefix, service.LoginGuardPolicy{
		FreeAttempts: cfg.LoginGuardFreeAttempts,
		BaseDelay:    cfg.LoginGuardBaseDelay,
		MaxDelay:     cfg.LoginGuardMaxDelay,
		ResetWindow:  cfg.LoginGuardResetWindow,
	})
}

func provideAuthSettings(cfg *config.Config) service.AuthSettings {
	return service.AuthSettings{
		Policy: service.CredentialPolicy{
			MinPasswordLength: cfg.PasswordMinLength,
			MaxPasswordLength: cfg.PasswordMaxLength,
		},
		SessionTTL: cfg.SessionTTL,
		TokenTTL:   cfg.TokenTTL,
	}
}

func provideSessionCookieProvider(sessions repository.SessionRepository, cfg *config.Config) *service.SessionCookieProvider {
	return service.NewSessionCookieProvider(sessions, cfg.SessionCookieName)
}

func provideCookieConfig(cfg *config.Config) security.CookieConfig {
	return security.CookieConfig{
		Name:     cfg.SessionCookieName,
		Secure:   cfg.SessionCookieSecure,
		SameSite: parseSameSite(cfg.SessionCookieSameSite),
	}
}

func parseSameSite(v string) http.SameSite {
	switch v {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func provideAuthHandler(auth service.AuthServiceInterface, cookie security.CookieConfig, cfg *config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, cookie, cfg.SessionTTL)
}

func provideReadiness(exec *store.ScriptExecutor) *health.ProbeRunner {
	return health.NewProbeRunner(2*time.Second, time.Second, health.NewRedisChecker(exec))
}

func provideRouterDependencies(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
	resolver service.IdentityResolverInterface,
	readiness *health.ProbeRunner,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:       authHandler,
		UserHandler:       userHandler,
		AdminHandler:      adminHandler,
		Resolver:          resolver,
		CORSOrigins:       cfg.CORSOrigins,
		AuthRateLimitRPM:  cfg.AuthRateLimitRPM,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
}

// StoreTools is the subset of the graph used by operator commands.
type StoreTools struct {
	Executor *store.ScriptExecutor
	Auth     *service.AuthService
	Users    repository.UserRepository
	Tokens   repository.TokenRepository
	Logger   *slog.Logger
}

func newStoreTools(exec *store.ScriptExecutor, auth *service.AuthService, users repository.UserRepository, tokens repository.TokenRepository, logger *slog.Logger) *StoreTools {
	return &StoreTools{Executor: exec, Auth: auth, Users: users, Tokens: tokens, Logger: logger}
}
