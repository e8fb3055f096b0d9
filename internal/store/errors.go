package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/drugorders/identity-service/internal/domain"
)

// UnavailableError wraps a connectivity failure. It matches both
// domain.ErrStoreUnavailable and the underlying cause under errors.Is.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, domain.ErrStoreUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{domain.ErrStoreUnavailable, e.Err}
}

// IsMiss reports a key or script reply that does not exist.
func IsMiss(err error) bool { return errors.Is(err, redis.Nil) }

// Classify maps a raw client error to the store taxonomy. redis.Nil passes
// through untouched so callers can translate it to their own NotFound kind.
func Classify(op string, err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	if isConnectivityError(err) {
		return &UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectivityError(err error) bool {
	if errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "NOAUTH") ||
		strings.HasPrefix(msg, "WRONGPASS") ||
		strings.HasPrefix(msg, "LOADING") ||
		strings.Contains(msg, "connection pool timeout")
}
