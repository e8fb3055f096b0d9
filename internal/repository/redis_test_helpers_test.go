package repository

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/drugorders/identity-service/internal/security"
	"github.com/drugorders/identity-service/internal/store"
)

func newExecutorForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client, *store.ScriptExecutor) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client, store.NewScriptExecutor(client)
}

func newUserRepoForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisUserRepository) {
	t.Helper()

	server, client, exec := newExecutorForTest(t)
	hasher, err := security.NewPasswordHasher(security.SchemeSHA256, 0)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return server, client, NewUserRepository(exec, hasher, nil)
}
