package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/security"
	"github.com/drugorders/identity-service/internal/store"
)

const DefaultSessionTTL = 24 * time.Hour

type SessionRepository interface {
	Create(ctx context.Context, username string, ttl time.Duration) (string, error)
	Get(ctx context.Context, sessionID string) (*domain.User, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
	CurrentForUser(ctx context.Context, username string) (string, error)
}

// RedisSessionRepository stores session:<id> -> username plus a
// user:session:<username> pointer to the most recently created session.
// Older sessions stay valid until they expire or are deleted.
type RedisSessionRepository struct {
	exec       *store.ScriptExecutor
	defaultTTL time.Duration
}

func NewSessionRepository(exec *store.ScriptExecutor, defaultTTL time.Duration) *RedisSessionRepository {
	if defaultTTL <= 0 {
		defaultTTL = DefaultSessionTTL
	}
	return &RedisSessionRepository{exec: exec, defaultTTL: defaultTTL}
}

func (r *RedisSessionRepository) Create(ctx context.Context, username string, ttl time.Duration) (string, error) {
	sid, err := r.create(ctx, username, ttl)
	recordOperation(ctx, "session", "create", err)
	return sid, err
}

func (r *RedisSessionRepository) create(ctx context.Context, username string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", domain.ValidationError{Field: "username", Msg: "is required"}
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	sid, err := security.NewSessionID()
	if err != nil {
		return "", err
	}
	_, err = r.exec.Run(ctx, store.CreateSession,
		[]string{store.SessionKey(sid), store.UserSessionKey(username)},
		username, sid, ttlMillis(ttl),
	)
	if err != nil {
		return "", err
	}
	return sid, nil
}

// Get returns the user a live session belongs to. A session whose user record
// has disappeared is reported as not found.
func (r *RedisSessionRepository) Get(ctx context.Context, sessionID string) (*domain.User, error) {
	user, err := r.get(ctx, sessionID)
	recordOperation(ctx, "session", "get", err)
	return user, err
}

func (r *RedisSessionRepository) get(ctx context.Context, sessionID string) (*domain.User, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}
	res, err := r.exec.Run(ctx, store.GetSession, []string{store.SessionKey(sessionID)}, store.UserKeyPrefix)
	if store.IsMiss(err) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	user, err := decodeUserReply(res)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	return user, err
}

// Delete removes the session and reports whether it existed. Deleting an
// unknown session is not an error.
func (r *RedisSessionRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	deleted, err := r.delete(ctx, sessionID)
	recordOperation(ctx, "session", "delete", err)
	return deleted, err
}

func (r *RedisSessionRepository) delete(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	res, err := r.exec.Run(ctx, store.DeleteSession,
		[]string{store.SessionKey(sessionID)},
		store.UserSessionKeyPrefix, sessionID,
	)
	if err != nil {
		return false, err
	}
	n, err := store.IntReply(res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CurrentForUser returns the latest session id recorded for username.
func (r *RedisSessionRepository) CurrentForUser(ctx context.Context, username string) (string, error) {
	sid, err := r.exec.Client().Get(ctx, store.UserSessionKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		err = domain.ErrSessionNotFound
	} else {
		err = store.Classify("current session", err)
	}
	recordOperation(ctx, "session", "current_for_user", err)
	if err != nil {
		return "", err
	}
	return sid, nil
}

func ttlMillis(ttl time.Duration) int64 {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return ms
}
