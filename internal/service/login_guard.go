package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrLoginThrottled = errors.New("too many failed login attempts")

// LoginThrottledError carries how long the caller must wait before the next
// attempt is evaluated.
type LoginThrottledError struct {
	RetryAfter time.Duration
}

func (e *LoginThrottledError) Error() string {
	return fmt.Sprintf("%v: retry after %s", ErrLoginThrottled, e.RetryAfter.Round(time.Second))
}

func (e *LoginThrottledError) Is(target error) bool { return target == ErrLoginThrottled }

// LoginGuardPolicy describes the cooldown curve applied after repeated
// failures for one username and client address. The first FreeAttempts
// failures cost nothing; each further failure waits BaseDelay*Multiplier^n,
// capped at MaxDelay. State is forgotten after ResetWindow without failures.
type LoginGuardPolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func (p LoginGuardPolicy) withDefaults() LoginGuardPolicy {
	if p.FreeAttempts < 0 {
		p.FreeAttempts = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = 5 * time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 15 * time.Minute
	}
	return p
}

type LoginGuard interface {
	Check(ctx context.Context, username, clientIP string) (time.Duration, error)
	RegisterFailure(ctx context.Context, username, clientIP string) (time.Duration, error)
	Reset(ctx context.Context, username, clientIP string) error
}

type NoopLoginGuard struct{}

func NewNoopLoginGuard() *NoopLoginGuard { return &NoopLoginGuard{} }

func (NoopLoginGuard) Check(context.Context, string, string) (time.Duration, error) { return 0, nil }

func (NoopLoginGuard) RegisterFailure(context.Context, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopLoginGuard) Reset(context.Context, string, string) error { return nil }
