package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration

	RedisAddr         string
	RedisUsername     string
	RedisPassword     string
	RedisDB           int
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration
	RedisPoolSize     int
	RedisMaxRetries   int

	SessionTTL            time.Duration
	TokenTTL              time.Duration
	SessionCookieName     string
	SessionCookieSecure   bool
	SessionCookieSameSite string

	PasswordMinLength  int
	PasswordMaxLength  int
	PasswordHashScheme string
	PasswordBcryptCost int

	AuthRateLimitRPM int
	CORSOrigins      []string

	// TrustProxyHeaders honours X-Forwarded-For and X-Real-IP. Only enable it
	// behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	LoginGuardEnabled      bool
	LoginGuardFreeAttempts int
	LoginGuardBaseDelay    time.Duration
	LoginGuardMaxDelay     time.Duration
	LoginGuardResetWindow  time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSampleRatio      float64
}

// Load reads an optional .env file, then the process environment. Parse
// errors are returned as "parse KEY: ..." and rule violations as
// "validate config: ...".
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg, err := fromEnv()
	profile := os.Getenv("APP_ENV")
	if err != nil {
		recordConfigValidationEvent(context.Background(), profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), profile, "success", "none")
	return cfg, nil
}

func fromEnv() (*Config, error) {
	p := &envParser{}
	cfg := &Config{
		AppEnv:   p.str("APP_ENV", "development"),
		LogLevel: p.str("LOG_LEVEL", "info"),

		HTTPAddr:         p.str("HTTP_ADDR", ":8080"),
		HTTPReadTimeout:  p.duration("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout: p.duration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:  p.duration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout:  p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),

		RedisAddr:         p.str("REDIS_ADDR", ""),
		RedisUsername:     p.str("REDIS_USERNAME", ""),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           p.integer("REDIS_DB", 0),
		RedisDialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:     p.integer("REDIS_POOL_SIZE", 20),
		RedisMaxRetries:   p.integer("REDIS_MAX_RETRIES", -1),

		SessionTTL:            p.duration("SESSION_TTL", 86400*time.Second),
		TokenTTL:              p.duration("TOKEN_TTL", 24*time.Hour),
		SessionCookieName:     p.str("SESSION_COOKIE_NAME", "session_id"),
		SessionCookieSecure:   p.boolean("SESSION_COOKIE_SECURE", false),
		SessionCookieSameSite: p.str("SESSION_COOKIE_SAMESITE", "lax"),

		PasswordMinLength:  p.integer("PASSWORD_MIN_LENGTH", 6),
		PasswordMaxLength:  p.integer("PASSWORD_MAX_LENGTH", 72),
		PasswordHashScheme: strings.ToLower(p.str("PASSWORD_HASH_SCHEME", "sha256")),
		PasswordBcryptCost: p.integer("PASSWORD_BCRYPT_COST", 10),

		AuthRateLimitRPM:  p.integer("AUTH_RATE_LIMIT_RPM", 30),
		CORSOrigins:       splitCSV(p.str("CORS_ORIGINS", "http://localhost:3000")),
		TrustProxyHeaders: p.boolean("TRUST_PROXY_HEADERS", false),

		LoginGuardEnabled:      p.boolean("LOGIN_GUARD_ENABLED", true),
		LoginGuardFreeAttempts: p.integer("LOGIN_GUARD_FREE_ATTEMPTS", 5),
		LoginGuardBaseDelay:    p.duration("LOGIN_GUARD_BASE_DELAY", 2*time.Second),
		LoginGuardMaxDelay:     p.duration("LOGIN_GUARD_MAX_DELAY", 5*time.Minute),
		LoginGuardResetWindow:  p.duration("LOGIN_GUARD_RESET_WINDOW", 15*time.Minute),

		OTELServiceName:           p.str("OTEL_SERVICE_NAME", "identity-service"),
		OTELEnvironment:           p.str("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint:  p.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  p.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        p.boolean("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:        p.boolean("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           p.boolean("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: p.duration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second),
		OTELTraceSampleRatio:      p.float("OTEL_TRACE_SAMPLE_RATIO", 1.0),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if c.RedisUsername != "" && c.RedisPassword == "" {
		errs = append(errs, errors.New("REDIS_PASSWORD is required when REDIS_USERNAME is set"))
	}
	if c.RedisDB < 0 {
		errs = append(errs, errors.New("REDIS_DB must be >= 0"))
	}
	if c.SessionTTL < time.Second {
		errs = append(errs, errors.New("SESSION_TTL must be at least 1s"))
	}
	if c.TokenTTL < time.Second {
		errs = append(errs, errors.New("TOKEN_TTL must be at least 1s"))
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		errs = append(errs, errors.New("SESSION_COOKIE_NAME cannot be empty"))
	}
	switch c.SessionCookieSameSite {
	case "lax", "strict", "none":
	default:
		errs = append(errs, errors.New("SESSION_COOKIE_SAMESITE must be lax, strict or none"))
	}
	if c.SessionCookieSameSite == "none" && !c.SessionCookieSecure {
		errs = append(errs, errors.New("SESSION_COOKIE_SAMESITE=none requires SESSION_COOKIE_SECURE=true"))
	}
	if c.PasswordMinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be positive"))
	}
	if c.PasswordMaxLength < c.PasswordMinLength {
		errs = append(errs, errors.New("PASSWORD_MAX_LENGTH must be >= PASSWORD_MIN_LENGTH"))
	}
	switch c.PasswordHashScheme {
	case "sha256", "bcrypt":
	default:
		errs = append(errs, fmt.Errorf("PASSWORD_HASH_SCHEME %q is not supported", c.PasswordHashScheme))
	}
	if c.PasswordHashScheme == "bcrypt" && c.PasswordMaxLength > 72 {
		errs = append(errs, errors.New("PASSWORD_MAX_LENGTH cannot exceed 72 with bcrypt"))
	}
	if c.AuthRateLimitRPM <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT_RPM must be positive"))
	}
	if c.LoginGuardEnabled {
		if c.LoginGuardFreeAttempts < 0 {
			errs = append(errs, errors.New("LOGIN_GUARD_FREE_ATTEMPTS must be >= 0"))
		}
		if c.LoginGuardBaseDelay <= 0 || c.LoginGuardMaxDelay < c.LoginGuardBaseDelay {
			errs = append(errs, errors.New("LOGIN_GUARD_MAX_DELAY must be >= LOGIN_GUARD_BASE_DELAY > 0"))
		}
		if c.LoginGuardResetWindow <= 0 {
			errs = append(errs, errors.New("LOGIN_GUARD_RESET_WINDOW must be positive"))
		}
	}
	if c.OTELTraceSampleRatio < 0 || c.OTELTraceSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLE_RATIO must be within [0,1]"))
	}
	return errors.Join(errs...)
}

type envParser struct {
	err error
}

func (p *envParser) str(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func (p *envParser) integer(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *envParser) float(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *envParser) boolean(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		// bare integers are seconds, matching the store's TTL unit
		n, nerr := strconv.Atoi(raw)
		if nerr != nil {
			p.fail(key, err)
			return fallback
		}
		v = time.Duration(n) * time.Second
	}
	return v
}

func (p *envParser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
	}
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
