package service

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/drugorders/identity-service/internal/repository"
	"github.com/drugorders/identity-service/internal/security"
	"github.com/drugorders/identity-service/internal/store"
)

func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

type testStack struct {
	server   *miniredis.Miniredis
	client   *redis.Client
	exec     *store.ScriptExecutor
	users    *repository.RedisUserRepository
	sessions *repository.RedisSessionRepository
	tokens   *repository.RedisTokenRepository
}

func newStackForTest(t *testing.T) *testStack {
	t.Helper()

	server, client := newRedisClientForTest(t)
	exec := store.NewScriptExecutor(client)
	hasher, err := security.NewPasswordHasher(security.SchemeSHA256, 0)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return &testStack{
		server:   server,
		client:   client,
		exec:     exec,
		users:    repository.NewUserRepository(exec, hasher, nil),
		sessions: repository.NewSessionRepository(exec, time.Hour),
		tokens:   repository.NewTokenRepository(exec, time.Hour),
	}
}

func (s *testStack) authService(guard LoginGuard) *AuthService {
	return NewAuthService(s.users, s.sessions, s.tokens, guard, AuthSettings{
		Policy:     DefaultCredentialPolicy(),
		SessionTTL: time.Hour,
		TokenTTL:   time.Hour,
	}, nil)
}

func (s *testStack) resolver() *IdentityResolver {
	return NewIdentityResolver(
		NewBearerTokenProvider(s.tokens, s.users),
		NewSessionCookieProvider(s.sessions, "session_id"),
		nil,
	)
}
