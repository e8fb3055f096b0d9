package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drugorders/identity-service/internal/store"
)

// RedisLoginGuard keeps per (username, client ip) failure state in a hash so
// every replica enforces the same cooldown.
type RedisLoginGuard struct {
	exec   *store.ScriptExecutor
	prefix string
	policy LoginGuardPolicy
	now    func() time.Time
}

func NewRedisLoginGuard(exec *store.ScriptExecutor, prefix string, policy LoginGuardPolicy) *RedisLoginGuard {
	if prefix == "" {
		prefix = "login_guard"
	}
	return &RedisLoginGuard{
		exec:   exec,
		prefix: prefix,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
}

func (g *RedisLoginGuard) Check(ctx context.Context, username, clientIP string) (time.Duration, error) {
	vals, err := g.exec.Client().HMGet(ctx, g.stateKey(username, clientIP), "cooldown_until_ms", "last_failure_ms").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, store.Classify("login guard check", err)
	}
	if len(vals) == 0 || vals[0] == nil {
		return 0, nil
	}
	raw, ok := vals[0].(string)
	if !ok {
		return 0, fmt.Errorf("login guard cooldown has type %T", vals[0])
	}
	until, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse login guard cooldown: %w", err)
	}
	remaining := time.Duration(until-g.now().UnixMilli()) * time.Millisecond
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (g *RedisLoginGuard) RegisterFailure(ctx context.Context, username, clientIP string) (time.Duration, error) {
	p := g.policy
	res, err := g.exec.Run(ctx, store.RegisterLoginFailure,
		[]string{g.stateKey(username, clientIP)},
		g.now().UnixMilli(),
		p.FreeAttempts,
		p.BaseDelay.Milliseconds(),
		strconv.FormatFloat(p.Multiplier, 'f', -1, 64),
		p.MaxDelay.Milliseconds(),
		p.ResetWindow.Milliseconds(),
	)
	if err != nil {
		return 0, err
	}
	ms, err := store.IntReply(res)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (g *RedisLoginGuard) Reset(ctx context.Context, username, clientIP string) error {
	return store.Classify("login guard reset", g.exec.Client().Del(ctx, g.stateKey(username, clientIP)).Err())
}

// stateKey hashes the username so arbitrary input never shapes the key.
func (g *RedisLoginGuard) stateKey(username, clientIP string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(username))))
	ip := strings.TrimSpace(clientIP)
	if ip == "" {
		ip = "unknown"
	}
	return fmt.Sprintf("%s:%s:%s", g.prefix, hex.EncodeToString(sum[:16]), ip)
}
