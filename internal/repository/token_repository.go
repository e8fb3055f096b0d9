package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/observability"
	"github.com/drugorders/identity-service/internal/security"
	"github.com/drugorders/identity-service/internal/store"
)

const DefaultTokenTTL = 24 * time.Hour

type TokenRepository interface {
	Create(ctx context.Context, username string, ttl time.Duration) (string, error)
	Resolve(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAll(ctx context.Context, username string) (int, error)
	ListForUser(ctx context.Context, username string) ([]string, error)
}

// RedisTokenRepository keeps token:<t> -> username with a per-user index set
// user:<username>:tokens used for bulk revocation.
type RedisTokenRepository struct {
	exec       *store.ScriptExecutor
	defaultTTL time.Duration
}

func NewTokenRepository(exec *store.ScriptExecutor, defaultTTL time.Duration) *RedisTokenRepository {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	return &RedisTokenRepository{exec: exec, defaultTTL: defaultTTL}
}

func (r *RedisTokenRepository) Create(ctx context.Context, username string, ttl time.Duration) (string, error) {
	token, err := r.create(ctx, username, ttl)
	recordOperation(ctx, "token", "create", err)
	return token, err
}

func (r *RedisTokenRepository) create(ctx context.Context, username string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", domain.ValidationError{Field: "username", Msg: "is required"}
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	token, err := security.NewBearerToken()
	if err != nil {
		return "", err
	}
	_, err = r.exec.Run(ctx, store.CreateToken,
		[]string{store.TokenKey(token), store.UserTokensKey(username)},
		username, token, ttlMillis(ttl),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the username a live token belongs to.
func (r *RedisTokenRepository) Resolve(ctx context.Context, token string) (string, error) {
	username, err := r.resolve(ctx, token)
	recordOperation(ctx, "token", "resolve", err)
	return username, err
}

func (r *RedisTokenRepository) resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrTokenNotFound
	}
	username, err := r.exec.Client().Get(ctx, store.TokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrTokenNotFound
	}
	if err != nil {
		return "", store.Classify("resolve token", err)
	}
	return username, nil
}

// Revoke deletes a single token and reports whether it was live.
func (r *RedisTokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	revoked, err := r.revoke(ctx, token)
	recordOperation(ctx, "token", "revoke", err)
	if revoked {
		observability.RecordTokenRevocations(ctx, "single", 1)
	}
	return revoked, err
}

func (r *RedisTokenRepository) revoke(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	res, err := r.exec.Run(ctx, store.RevokeToken,
		[]string{store.TokenKey(token)},
		store.UserKeyPrefix, store.UserTokensKeySuffix, token,
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

// RevokeAll revokes every token indexed for username and returns how many
// were still live. Index entries whose token already expired are dropped.
// Tokens issued while this runs are left untouched.
func (r *RedisTokenRepository) RevokeAll(ctx context.Context, username string) (int, error) {
	n, err := r.revokeAll(ctx, username)
	recordOperation(ctx, "token", "revoke_all", err)
	observability.RecordTokenRevocations(ctx, "all", n)
	return n, err
}

func (r *RedisTokenRepository) revokeAll(ctx context.Context, username string) (int, error) {
	if username == "" {
		return 0, nil
	}
	setKey := store.UserTokensKey(username)
	tokens, err := r.exec.Client().SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, store.Classify("list tokens", err)
	}
	revoked := 0
	stale := make([]any, 0)
	for _, token := range tokens {
		ok, err := r.revoke(ctx, token)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		} else {
			stale = append(stale, token)
		}
	}
	if len(stale) > 0 {
		if err := r.exec.Client().SRem(ctx, setKey, stale...).Err(); err != nil {
			return revoked, store.Classify("prune tokens", err)
		}
	}
	return revoked, nil
}

// ListForUser returns the indexed tokens of username that are still live.
func (r *RedisTokenRepository) ListForUser(ctx context.Context, username string) ([]string, error) {
	tokens, err := r.listForUser(ctx, username)
	recordOperation(ctx, "token", "list_for_user", err)
	return tokens, err
}

func (r *RedisTokenRepository) listForUser(ctx context.Context, username string) ([]string, error) {
	client := r.exec.Client()
	members, err := client.SMembers(ctx, store.UserTokensKey(username)).Result()
	if err != nil {
		return nil, store.Classify("list tokens", err)
	}
	if len(members) == 0 {
		return []string{}, nil
	}
	pipe := client.Pipeline()
	cmds := make([]*redis.IntCmd, 0, len(members))
	for _, token := range members {
		cmds = append(cmds, pipe.Exists(ctx, store.TokenKey(token)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, store.Classify("list tokens", err)
	}
	live := make([]string, 0, len(members))
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			live = append(live, members[i])
		}
	}
	return live, nil
}
