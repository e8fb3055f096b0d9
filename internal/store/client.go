package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	// MaxRetries follows go-redis: -1 disables client retries.
	MaxRetries int
}

func (o Options) Validate() error {
	if strings.TrimSpace(o.Addr) == "" {
		return fmt.Errorf("redis address is required")
	}
	if o.DB < 0 {
		return fmt.Errorf("redis db must be >= 0")
	}
	if o.Username != "" && o.Password == "" {
		return fmt.Errorf("redis username set without password")
	}
	return nil
}

// NewClient always yields a single-node client since Addrs holds one address
// and no master name is set.
func NewClient(o Options) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{o.Addr},
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
		MaxRetries:   o.MaxRetries,
	})
}

// Connect builds a client and verifies it with a PING. Any failure is
// reported as unavailable so the caller can refuse to start.
func Connect(ctx context.Context, o Options, logger *slog.Logger) (redis.UniversalClient, error) {
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("store options: %w", err)
	}
	client := NewClient(o)
	timeout := o.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &UnavailableError{Op: "store.connect", Err: err}
	}
	if logger != nil {
		logger.Info("redis connected", "addr", o.Addr, "db", o.DB, "auth", o.Password != "")
	}
	return client, nil
}

// Ping is used by readiness checks.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	return Classify("store.ping", client.Ping(ctx).Err())
}
