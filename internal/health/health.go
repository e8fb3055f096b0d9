package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drugorders/identity-service/internal/store"
)

type CheckResult struct {
	Name       string `json:"name"`
	Healthy    bool   `json:"healthy"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ProbeRunner runs every checker concurrently under one timeout. Results are
// reused for cacheTTL so probes cannot hammer the store.
type ProbeRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration
	checkers []Checker

	mu       sync.Mutex
	cachedAt time.Time
	ready    bool
	results  []CheckResult
}

func NewProbeRunner(timeout, cacheTTL time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{timeout: timeout, cacheTTL: cacheTTL, checkers: checkers}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cacheTTL > 0 && !p.cachedAt.IsZero() && time.Since(p.cachedAt) < p.cacheTTL {
		return p.ready, p.results
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]CheckResult, len(p.checkers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range p.checkers {
		g.Go(func() error {
			results[i] = c.Check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	for _, r := range results {
		if !r.Healthy {
			ready = false
		}
	}
	p.ready, p.results, p.cachedAt = ready, results, time.Now()
	return ready, results
}

// RedisChecker pings the store and confirms server-side scripting works.
type RedisChecker struct {
	exec *store.ScriptExecutor
}

func NewRedisChecker(exec *store.ScriptExecutor) *RedisChecker {
	return &RedisChecker{exec: exec}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	started := time.Now()
	res := CheckResult{Name: "redis", Healthy: true}
	if err := store.Ping(ctx, c.exec.Client()); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	} else if _, err := c.exec.Run(ctx, store.ScriptingProbe, nil); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	res.DurationMS = time.Since(started).Milliseconds()
	return res
}
