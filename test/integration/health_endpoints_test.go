package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthLiveAndReadyEndpoints(t *testing.T) {
	baseURL, client, mr, closeFn := newAuthTestServer(t)
	defer closeFn()

	t.Run("live endpoint stable 200 payload", func(t *testing.T) {
		resp, env := doJSON(t, client, http.MethodGet, baseURL+"/health/live", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, env.Success)
		data := decodeInto[map[string]any](t, env)
		assert.Equal(t, "ok", data["status"])
	})

	t.Run("ready endpoint reports redis check", func(t *testing.T) {
		resp, env := doJSON(t, client, http.MethodGet, baseURL+"/health/ready", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := decodeInto[struct {
			Status string `json:"status"`
			Checks []struct {
				Name    string `json:"name"`
				Healthy bool   `json:"healthy"`
			} `json:"checks"`
		}](t, env)
		assert.Equal(t, "ready", data.Status)
		require.Len(t, data.Checks, 1)
		assert.Equal(t, "redis", data.Checks[0].Name)
		assert.True(t, data.Checks[0].Healthy)
	})

	t.Run("store outage turns identity lookups into 503", func(t *testing.T) {
		mr.Close()
		resp, env := doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me", nil, map[string]string{"Authorization": "Bearer anything"})
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Equal(t, "STORE_UNAVAILABLE", env.Error.Code)
	})
}
