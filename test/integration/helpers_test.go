package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/drugorders/identity-service/internal/config"
	"github.com/drugorders/identity-service/internal/di"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func integrationConfig(redisAddr string) *config.Config {
	return &config.Config{
		AppEnv:                 "test",
		LogLevel:               "error",
		HTTPAddr:               "127.0.0.1:0",
		ShutdownTimeout:        time.Second,
		RedisAddr:              redisAddr,
		RedisDialTimeout:       time.Second,
		RedisReadTimeout:       time.Second,
		RedisWriteTimeout:      time.Second,
		RedisPoolSize:          16,
		RedisMaxRetries:        -1,
		SessionTTL:             time.Hour,
		TokenTTL:               time.Hour,
		SessionCookieName:      "session_id",
		SessionCookieSameSite:  "lax",
		PasswordMinLength:      6,
		PasswordMaxLength:      72,
		PasswordHashScheme:     "sha256",
		AuthRateLimitRPM:       10000,
		CORSOrigins:            []string{"http://localhost:3000"},
		LoginGuardEnabled:      true,
		LoginGuardFreeAttempts: 3,
		LoginGuardBaseDelay:    time.Minute,
		LoginGuardMaxDelay:     10 * time.Minute,
		LoginGuardResetWindow:  15 * time.Minute,
		OTELServiceName:        "identity-service-it",
	}
}

// newAuthTestServer serves the fully wired app over HTTP against an in-process
// Redis. The returned client keeps cookies between calls.
func newAuthTestServer(t *testing.T) (string, *http.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	return newAuthTestServerWithRedis(t, mr.Addr(), mr)
}

func newAuthTestServerWithRedis(t *testing.T, addr string, mr *miniredis.Miniredis) (string, *http.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	a, cleanup, err := di.InitializeApp(context.Background(), integrationConfig(addr))
	require.NoError(t, err)

	srv := httptest.NewServer(a.Server.Handler)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}
	return srv.URL, client, mr, func() {
		srv.Close()
		cleanup()
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, apiEnvelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env apiEnvelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", string(raw))
	return resp, env
}

func decodeInto[T any](t *testing.T, env apiEnvelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func sessionCookieFrom(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}
