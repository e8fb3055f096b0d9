package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/drugorders/identity-service/internal/config"
	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/service"
)

func testConfig(addr string) *config.Config {
	return &config.Config{
		AppEnv:                 "test",
		LogLevel:               "error",
		HTTPAddr:               "127.0.0.1:0",
		ShutdownTimeout:        time.Second,
		RedisAddr:              addr,
		RedisDialTimeout:       time.Second,
		RedisReadTimeout:       time.Second,
		RedisWriteTimeout:      time.Second,
		RedisPoolSize:          4,
		RedisMaxRetries:        -1,
		SessionTTL:             time.Hour,
		TokenTTL:               time.Hour,
		SessionCookieName:      "session_id",
		SessionCookieSameSite:  "lax",
		PasswordMinLength:      6,
		PasswordMaxLength:      72,
		PasswordHashScheme:     "sha256",
		AuthRateLimitRPM:       100,
		CORSOrigins:            []string{"http://localhost:3000"},
		LoginGuardEnabled:      true,
		LoginGuardFreeAttempts: 5,
		LoginGuardBaseDelay:    time.Second,
		LoginGuardMaxDelay:     time.Minute,
		LoginGuardResetWindow:  time.Minute,
		OTELServiceName:        "identity-service-test",
	}
}

func TestInitializeAppServesRegisteredRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	a, cleanup, err := InitializeApp(context.Background(), testConfig(mr.Addr()))
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"username":"bob","password":"s3cret1"}`))
	rr := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestInitializeAppFailsWithoutStore(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, _, err := InitializeApp(context.Background(), testConfig(addr))
	if err == nil {
		t.Fatal("expected startup to fail when the store is unreachable")
	}
	if !domain.IsStoreUnavailable(err) {
		t.Fatalf("expected store unavailable error, got %v", err)
	}
}

func TestInitializeStoreToolsProvisionsAdmin(t *testing.T) {
	mr := miniredis.RunT(t)
	tools, cleanup, err := InitializeStoreTools(context.Background(), testConfig(mr.Addr()))
	if err != nil {
		t.Fatalf("initialize store tools: %v", err)
	}
	defer cleanup()

	user, err := tools.Auth.Provision(context.Background(), service.RegisterInput{Username: "root", Password: "rootpass"}, domain.Privileges{IsStaff: true, IsSuperuser: true})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !user.IsSuperuser || user.ID != 1 {
		t.Fatalf("unexpected admin %+v", user)
	}
}

func TestParseSameSite(t *testing.T) {
	cases := map[string]http.SameSite{
		"strict": http.SameSiteStrictMode,
		"none":   http.SameSiteNoneMode,
		"lax":    http.SameSiteLaxMode,
		"":       http.SameSiteLaxMode,
	}
	for in, want := range cases {
		if got := parseSameSite(in); got != want {
			t.Fatalf("parseSameSite(%q)=%v want %v", in, got, want)
		}
	}
}
