package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/security"
	"github.com/drugorders/identity-service/internal/store"
)

func TestUserRepositoryRegisterAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, _, repo := newUserRepoForTest(t)

	profile := domain.Profile{FirstName: "Bob", LastName: "Builder", Email: "bob@example.com"}
	created, err := repo.Register(ctx, "bob", "s3cret1", profile, domain.Privileges{IsStaff: true})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected first id 1, got %d", created.ID)
	}

	byName, err := repo.GetByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	byID, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	for _, got := range []*domain.User{byName, byID} {
		if got.ID != 1 || got.Username != "bob" || got.FirstName != "Bob" || got.LastName != "Builder" || got.Email != "bob@example.com" {
			t.Fatalf("unexpected user: %+v", got)
		}
		if !got.IsStaff || got.IsSuperuser {
			t.Fatalf("unexpected flags: %+v", got)
		}
	}
}

func TestUserRepositoryStoresOnlyPasswordDigest(t *testing.T) {
	ctx := context.Background()
	server, _, repo := newUserRepoForTest(t)

	if _, err := repo.Register(ctx, "carol", "hunter22", domain.Profile{}, domain.Privileges{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	stored := server.HGet("user:carol", "password")
	if stored == "hunter22" {
		t.Fatal("plaintext password persisted")
	}
	if stored != security.HashPassword("hunter22") {
		t.Fatalf("expected sha256 digest, got %q", stored)
	}
}

func TestUserRepositoryRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	server, _, repo := newUserRepoForTest(t)

	if _, err := repo.Register(ctx, "bob", "s3cret1", domain.Profile{}, domain.Privileges{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := repo.Register(ctx, "bob", "other-pass", domain.Profile{FirstName: "X"}, domain.Privileges{})
	if !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	counter, err := repo.CounterValue(ctx)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if counter != 1 {
		t.Fatalf("duplicate must not consume an id, counter=%d", counter)
	}
	if got := server.HGet("user:bob", "password"); got != security.HashPassword("s3cret1") {
		t.Fatal("duplicate register overwrote the original record")
	}
}

func TestUserRepositoryConcurrentRegisterSameUsername(t *testing.T) {
	ctx := context.Background()
	_, _, repo := newUserRepoForTest(t)

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := repo.Register(ctx, "alice", fmt.Sprintf("password-%d", i), domain.Profile{}, domain.Privileges{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrUserAlreadyExists):
				conflicts++
			default:
				failures = append(failures, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", workers-1, successes, conflicts)
	}
	counter, err := repo.CounterValue(ctx)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if counter != int64(successes) {
		t.Fatalf("counter %d does not match successful registrations %d", counter, successes)
	}
}

func TestUserRepositoryConcurrentRegisterDistinctIDs(t *testing.T) {
	ctx := context.Background()
	_, _, repo := newUserRepoForTest(t)

	const workers = 20
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := repo.Register(ctx, fmt.Sprintf("user%d", i), "password", domain.Profile{}, domain.Privileges{})
			if err != nil {
				t.Errorf("register user%d: %v", i, err)
				return
			}
			ids <- u.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, workers)
	for id := range ids {
		if seen[id] {
			t.Fatalf("id %d allocated twice", id)
		}
		if id < 1 || id > workers {
			t.Fatalf("id %d out of range", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d ids, got %d", workers, len(seen))
	}
	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != workers {
		t.Fatalf("expected %d users in index, got %d", workers, count)
	}
}

func TestUserRepositoryAuthenticate(t *testing.T) {
	ctx := context.Background()
	_, _, repo := newUserRepoForTest(t)

	if _, err := repo.Register(ctx, "bob", "s3cret1", domain.Profile{}, domain.Privileges{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := repo.Authenticate(ctx, "bob", "s3cret1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != 1 || user.Username != "bob" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := repo.Authenticate(ctx, "bob", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
	if _, err := repo.Authenticate(ctx, "nobody", "s3cret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestUserRepositoryAuthenticateUpgradesLegacyDigest(t *testing.T) {
	ctx := context.Background()
	server, _, exec := newExecutorForTest(t)

	legacy, err := security.NewPasswordHasher(security.SchemeSHA256, 0)
	if err != nil {
		t.Fatalf("legacy hasher: %v", err)
	}
	if _, err := NewUserRepository(exec, legacy, nil).Register(ctx, "dave", "pa55word", domain.Profile{}, domain.Privileges{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	bcryptHasher, err := security.NewPasswordHasher(security.SchemeBcrypt, 4)
	if err != nil {
		t.Fatalf("bcrypt hasher: %v", err)
	}
	repo := NewUserRepository(exec, bcryptHasher, nil)
	if _, err := repo.Authenticate(ctx, "dave", "pa55word"); err != nil {
		t.Fatalf("authenticate legacy: %v", err)
	}
	stored := server.HGet("user:dave", "password")
	if !security.IsBcryptHash(stored) {
		t.Fatalf("expected bcrypt hash after login, got %q", stored)
	}

	if _, err := repo.Authenticate(ctx, "dave", "pa55word"); err != nil {
		t.Fatalf("authenticate upgraded: %v", err)
	}
	if _, err := repo.Authenticate(ctx, "dave", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestUserRepositoryUpdateProfile(t *testing.T) {
	ctx := context.Background()
	server, _, repo := newUserRepoForTest(t)

	if _, err := repo.Register(ctx, "erin", "password", domain.Profile{FirstName: "Erin", Email: "old@example.com"}, domain.Privileges{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	email := "new@example.com"
	last := "Smith"
	updated, err := repo.UpdateProfile(ctx, "erin", domain.ProfileUpdate{LastName: &last, Email: &email})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FirstName != "Erin" || updated.LastName != "Smith" || updated.Email != "new@example.com" {
		t.Fatalf("unexpected profile: %+v", updated)
	}
	if server.HGet("user:erin", "password") != security.HashPassword("password") {
		t.Fatal("profile update touched the password")
	}

	if _, err := repo.UpdateProfile(ctx, "ghost", domain.ProfileUpdate{Email: &email}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserRepositoryUpdateProfileScriptIgnoresOtherFields(t *testing.T) {
	ctx := context.Background()
	server, _, exec := newExecutorForTest(t)
	repo := NewUserRepository(exec, mustHasher(t), nil)

	if _, err := repo.Register(ctx, "frank", "password", domain.Profile{}, domain.Privileges{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := exec.Run(ctx, store.UpdateProfile, []string{store.UserKey("frank")}, "is_superuser", "1", "password", "x", "email", "f@example.com")
	if err != nil {
		t.Fatalf("run update script: %v", err)
	}
	if server.HGet("user:frank", "is_superuser") != "0" {
		t.Fatal("privilege flag changed through profile update")
	}
	if server.HGet("user:frank", "email") != "f@example.com" {
		t.Fatal("allowed field not written")
	}
}

func TestUserRepositoryLookupsOfMissingUsers(t *testing.T) {
	ctx := context.Background()
	_, _, repo := newUserRepoForTest(t)

	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found by name, got %v", err)
	}
	if _, err := repo.GetByID(ctx, 42); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found by id, got %v", err)
	}
	if _, err := repo.GetByID(ctx, 0); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found for id 0, got %v", err)
	}
	exists, err := repo.Exists(ctx, "nobody")
	if err != nil || exists {
		t.Fatalf("expected exists=false, got %v %v", exists, err)
	}
	counter, err := repo.CounterValue(ctx)
	if err != nil || counter != 0 {
		t.Fatalf("expected empty counter, got %d %v", counter, err)
	}
}

func TestUserRepositoryListOrdersByID(t *testing.T) {
	ctx := context.Background()
	_, _, repo := newUserRepoForTest(t)

	for _, name := range []string{"zed", "amy", "mo"} {
		if _, err := repo.Register(ctx, name, "password", domain.Profile{}, domain.Privileges{}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	want := []string{"zed", "amy", "mo"}
	for i, u := range users {
		if u.ID != int64(i+1) || u.Username != want[i] {
			t.Fatalf("unexpected user at %d: %+v", i, u)
		}
	}
}

func TestUserRepositoryDecodesLegacyFlagSpelling(t *testing.T) {
	ctx := context.Background()
	server, _, repo := newUserRepoForTest(t)

	server.HSet("user:root", "id", "7", "username", "root", "password", security.HashPassword("x"), "is_staff", "True", "is_superuser", "True")
	_ = server.Set("user:id:7", "root")

	user, err := repo.GetByID(ctx, 7)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if !user.IsStaff || !user.IsSuperuser {
		t.Fatalf("expected legacy flags to decode as true: %+v", user)
	}
}

func TestUserRepositoryStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	_, client, repo := newUserRepoForTest(t)
	_ = client.Close()

	if _, err := repo.Register(ctx, "bob", "s3cret1", domain.Profile{}, domain.Privileges{}); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable on register, got %v", err)
	}
	if _, err := repo.Authenticate(ctx, "bob", "s3cret1"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable on authenticate, got %v", err)
	}
	if _, err := repo.GetByUsername(ctx, "bob"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable on get, got %v", err)
	}
	if _, err := repo.List(ctx); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable on list, got %v", err)
	}
}

func mustHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()
	h, err := security.NewPasswordHasher(security.SchemeSHA256, 0)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func TestUserRepositoryNamesThatAreNotUsers(t *testing.T) {
	ctx := context.Background()
	_, _, repo := newUserRepoForTest(t)
	sessions := NewSessionRepository(repo.exec, time.Hour)
	tokens := NewTokenRepository(repo.exec, time.Hour)

	if _, err := repo.Register(ctx, "bob", "s3cret1", domain.Profile{}, domain.Privileges{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := sessions.Create(ctx, "bob", 0); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := tokens.Create(ctx, "bob", 0); err != nil {
		t.Fatalf("create token: %v", err)
	}

	names := []string{"bob:tokens", "session:bob", "id:counter", "id:1", "bo b", "bob\n"}
	for _, name := range names {
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			if _, err := repo.Authenticate(ctx, name, "s3cret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("authenticate: expected invalid credentials, got %v", err)
			}
			if _, err := repo.GetByUsername(ctx, name); !errors.Is(err, domain.ErrUserNotFound) {
				t.Fatalf("get by username: expected not found, got %v", err)
			}
			first := "x"
			if _, err := repo.UpdateProfile(ctx, name, domain.ProfileUpdate{FirstName: &first}); !errors.Is(err, domain.ErrUserNotFound) {
				t.Fatalf("update profile: expected not found, got %v", err)
			}
			exists, err := repo.Exists(ctx, name)
			if err != nil || exists {
				t.Fatalf("exists: expected false, got %v %v", exists, err)
			}
		})
	}
}
