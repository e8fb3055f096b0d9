package repository

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/security"
	"github.com/drugorders/identity-service/internal/store"
)

type UserRepository interface {
	Register(ctx context.Context, username, password string, profile domain.Profile, priv domain.Privileges) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, username string, update domain.ProfileUpdate) (*domain.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]domain.User, error)
	Count(ctx context.Context) (int64, error)
	CounterValue(ctx context.Context) (int64, error)
}

// RedisUserRepository is the identity store. Every check-then-write runs as
// one script so concurrent callers never observe a half-applied change.
type RedisUserRepository struct {
	exec   *store.ScriptExecutor
	hasher *security.PasswordHasher
	logger *slog.Logger
}

func NewUserRepository(exec *store.ScriptExecutor, hasher *security.PasswordHasher, logger *slog.Logger) *RedisUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisUserRepository{exec: exec, hasher: hasher, logger: logger}
}

func (r *RedisUserRepository) Register(ctx context.Context, username, password string, profile domain.Profile, priv domain.Privileges) (*domain.User, error) {
	user, err := r.register(ctx, username, password, profile, priv)
	recordOperation(ctx, "user", "register", err)
	return user, err
}

func (r *RedisUserRepository) register(ctx context.Context, username, password string, profile domain.Profile, priv domain.Privileges) (*domain.User, error) {
	hash, err := r.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	res, err := r.exec.Run(ctx, store.RegisterUser,
		[]string{store.UserKey(username), store.UserIDCounterKey, store.AllUsersKey},
		username,
		hash,
		profile.FirstName,
		profile.LastName,
		profile.Email,
		encodeFlag(priv.IsStaff),
		encodeFlag(priv.IsSuperuser),
		store.UserIDKeyPrefix,
	)
	if err != nil {
		return nil, err
	}
	id, err := store.IntReply(res)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, domain.ErrUserAlreadyExists
	}
	return &domain.User{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Email:        profile.Email,
		IsStaff:      priv.IsStaff,
		IsSuperuser:  priv.IsSuperuser,
	}, nil
}

// Authenticate never tells the caller whether the username exists.
func (r *RedisUserRepository) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := r.authenticate(ctx, username, password)
	recordOperation(ctx, "user", "authenticate", err)
	return user, err
}

func (r *RedisUserRepository) authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	res, err := r.exec.Run(ctx, store.Authenticate, []string{store.UserKey(username)}, security.HashPassword(password))
	if store.IsMiss(err) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	user, err := decodeUserReply(res)
	if err != nil {
		return nil, err
	}
	if !r.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}
	if r.hasher.NeedsUpgrade(user.PasswordHash) {
		r.upgradeHash(ctx, user, password)
	}
	return user, nil
}

// upgradeHash re-hashes a legacy digest with the configured scheme. It loses
// cleanly to a concurrent change of the stored hash.
func (r *RedisUserRepository) upgradeHash(ctx context.Context, user *domain.User, password string) {
	newHash, err := r.hasher.Hash(password)
	if err != nil {
		r.logger.WarnContext(ctx, "password rehash failed", "username", user.Username, "error", err.Error())
		return
	}
	res, err := r.exec.Run(ctx, store.UpgradePasswordHash, []string{store.UserKey(user.Username)}, user.PasswordHash, newHash)
	recordOperation(ctx, "user", "upgrade_password_hash", err)
	if err != nil {
		r.logger.WarnContext(ctx, "password rehash failed", "username", user.Username, "error", err.Error())
		return
	}
	if n, _ := store.IntReply(res); n == 1 {
		user.PasswordHash = newHash
		r.logger.InfoContext(ctx, "password hash upgraded", "username", user.Username, "scheme", string(r.hasher.Scheme()))
	}
}

func (r *RedisUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := r.getByUsername(ctx, username)
	recordOperation(ctx, "user", "get_by_username", err)
	return user, err
}

func (r *RedisUserRepository) getByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrUserNotFound
	}
	res, err := r.exec.Run(ctx, store.GetUser, []string{store.UserKey(username)})
	if store.IsMiss(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeUserReply(res)
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := r.getByID(ctx, id)
	recordOperation(ctx, "user", "get_by_id", err)
	return user, err
}

func (r *RedisUserRepository) getByID(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, domain.ErrUserNotFound
	}
	res, err := r.exec.Run(ctx, store.GetUserByID, []string{store.UserIDKey(id)}, store.UserKeyPrefix)
	if store.IsMiss(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeUserReply(res)
}

// UpdateProfile writes only the allow-listed fields. The script filters again
// so nothing else can reach the hash through this path.
func (r *RedisUserRepository) UpdateProfile(ctx context.Context, username string, update domain.ProfileUpdate) (*domain.User, error) {
	user, err := r.updateProfile(ctx, username, update)
	recordOperation(ctx, "user", "update_profile", err)
	return user, err
}

func (r *RedisUserRepository) updateProfile(ctx context.Context, username string, update domain.ProfileUpdate) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrUserNotFound
	}
	fields := update.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	args := make([]any, 0, 2*len(names))
	for _, name := range names {
		args = append(args, name, fields[name])
	}
	res, err := r.exec.Run(ctx, store.UpdateProfile, []string{store.UserKey(username)}, args...)
	if store.IsMiss(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeUserReply(res)
}

func (r *RedisUserRepository) Exists(ctx context.Context, username string) (bool, error) {
	kind, err := r.exec.Client().Type(ctx, store.UserKey(username)).Result()
	err = store.Classify("user exists", err)
	recordOperation(ctx, "user", "exists", err)
	if err != nil {
		return false, err
	}
	return kind == "hash", nil
}

// List returns every registered user ordered by id.
func (r *RedisUserRepository) List(ctx context.Context) ([]domain.User, error) {
	users, err := r.list(ctx)
	recordOperation(ctx, "user", "list", err)
	return users, err
}

func (r *RedisUserRepository) list(ctx context.Context) ([]domain.User, error) {
	client := r.exec.Client()
	usernames, err := client.SMembers(ctx, store.AllUsersKey).Result()
	if err != nil {
		return nil, store.Classify("list users", err)
	}
	if len(usernames) == 0 {
		return []domain.User{}, nil
	}
	pipe := client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(usernames))
	for _, username := range usernames {
		cmds = append(cmds, pipe.HGetAll(ctx, store.UserKey(username)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, store.Classify("list users", err)
	}
	users := make([]domain.User, 0, len(cmds))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, store.Classify("list users", err)
		}
		if len(fields) == 0 {
			continue
		}
		user, err := decodeUser(fields)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *RedisUserRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.exec.Client().SCard(ctx, store.AllUsersKey).Result()
	return n, store.Classify("count users", err)
}

// CounterValue reads the id counter; an absent counter means no registrations yet.
func (r *RedisUserRepository) CounterValue(ctx context.Context) (int64, error) {
	n, err := r.exec.Client().Get(ctx, store.UserIDCounterKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, store.Classify("read id counter", err)
}

func decodeUserReply(res any) (*domain.User, error) {
	fields, err := store.HashReply(res)
	if err != nil {
		return nil, err
	}
	return decodeUser(fields)
}
