package storecmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/drugorders/identity-service/internal/config"
	"github.com/drugorders/identity-service/internal/di"
	"github.com/drugorders/identity-service/internal/tools/common"
)

func setStoreEnv(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv(AdminPasswordEnv, "")
	return mr
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewStoreCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func lastCIResult(t *testing.T, out string) common.CIResult {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var res common.CIResult
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &res); err != nil {
		t.Fatalf("decode ci result %q: %v", out, err)
	}
	return res
}

func TestCreateAdminThenCheck(t *testing.T) {
	mr := setStoreEnv(t)

	out, err := execute(t, "create-admin", "--username", "root", "--password", "rootpass", "--ci")
	if err != nil {
		t.Fatalf("create-admin: %v (%s)", err, out)
	}
	if res := lastCIResult(t, out); !res.OK || !strings.Contains(res.Details[0], "superuser=true") {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := mr.HGet("user:root", "is_superuser"); got != "1" {
		t.Fatalf("expected superuser flag stored, got %q", got)
	}

	out, err = execute(t, "check", "--ci")
	if err != nil {
		t.Fatalf("check: %v (%s)", err, out)
	}
	res := lastCIResult(t, out)
	if !res.OK || !strings.Contains(strings.Join(res.Details, ";"), "users=1 last_id=1") {
		t.Fatalf("unexpected check result %+v", res)
	}
}

func TestCreateAdminRequiresPassword(t *testing.T) {
	setStoreEnv(t)
	_, err := execute(t, "create-admin", "--username", "root", "--ci")
	if err == nil || !strings.Contains(err.Error(), AdminPasswordEnv) {
		t.Fatalf("expected missing password error, got %v", err)
	}
}

func TestCreateAdminPasswordFromEnvAndDuplicate(t *testing.T) {
	setStoreEnv(t)
	t.Setenv(AdminPasswordEnv, "from-env-pass")

	if out, err := execute(t, "create-admin", "--username", "ops", "--staff-only", "--ci"); err != nil {
		t.Fatalf("create-admin: %v (%s)", err, out)
	}
	out, err := execute(t, "create-admin", "--username", "ops", "--ci")
	if err == nil {
		t.Fatal("expected duplicate username to fail")
	}
	if res := lastCIResult(t, out); res.OK || !strings.Contains(res.Error, "already exists") {
		t.Fatalf("unexpected duplicate result %+v", res)
	}
}

func TestRevokeTokensUsesFactory(t *testing.T) {
	setStoreEnv(t)
	var built bool
	factory := func(ctx context.Context, cfg *config.Config) (*di.StoreTools, func(), error) {
		built = true
		return di.InitializeStoreTools(ctx, cfg)
	}
	cmd := newStoreCommand(factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"revoke-tokens", "--username", "nobody", "--ci", "--env-file", filepath.Join(t.TempDir(), "none.env")})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("revoke-tokens: %v", err)
	}
	if !built || !strings.Contains(out.String(), "revoked 0 token(s) for nobody") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestCheckReportsStoreDown(t *testing.T) {
	mr := setStoreEnv(t)
	mr.Close()
	out, err := execute(t, "check", "--ci")
	if err == nil {
		t.Fatal("expected check to fail with the store down")
	}
	if res := lastCIResult(t, out); res.OK || !strings.Contains(res.Error, "store unavailable") {
		t.Fatalf("unexpected result %+v", res)
	}
}
