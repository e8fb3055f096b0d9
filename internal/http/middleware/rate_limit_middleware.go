package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/drugorders/identity-service/internal/http/response"
	"github.com/drugorders/identity-service/internal/observability"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token bucket: limit requests per window with a
// burst of the same size.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	every   rate.Limit
	limit   int
	window  time.Duration
	scope   string
	keyFunc func(r *http.Request) string
	cleanup time.Time
	now     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithKey("api", limit, window, nil)
}

func NewRateLimiterWithKey(scope string, limit int, window time.Duration, keyFunc func(r *http.Request) string) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if scope == "" {
		scope = "api"
	}
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		every:   rate.Every(window / time.Duration(limit)),
		limit:   limit,
		window:  window,
		scope:   scope,
		keyFunc: keyFunc,
		cleanup: time.Now().Add(window),
		now:     time.Now,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			now := rl.now()
			lim := rl.limiterFor(key, now)

			reservation := lim.ReserveN(now, 1)
			delay := reservation.DelayFrom(now)
			remaining := int(math.Floor(lim.TokensAt(now)))
			if !reservation.OK() || delay > 0 {
				reservation.CancelAt(now)
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				slog.WarnContext(r.Context(), "rate limit exceeded", "scope", rl.scope, "path", r.URL.Path)
				writeRateLimitHeaders(w.Header(), rl.limit, 0, now.Add(delay))
				w.Header().Set("Retry-After", retryAfterHeader(delay))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			writeRateLimitHeaders(w.Header(), rl.limit, remaining, now.Add(rl.window))
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > 2*rl.window {
				delete(rl.clients, k)
			}
		}
		rl.cleanup = now.Add(rl.window)
	}
	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// ClientIP keys on RemoteAddr. When the router runs chi's RealIP, RemoteAddr
// carries whatever X-Forwarded-For or X-Real-IP the request sent, so that is
// only safe behind a proxy that overwrites those headers.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}

func writeRateLimitHeaders(h http.Header, limit int, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", max(limit, 0)))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(remaining, 0)))
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
}
