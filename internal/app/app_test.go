package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/score-duel/internal/config"
)

func memoryConfig() *config.App {
	return &config.App{
		Name:                    "score-duel-test",
		Env:                     "test",
		HTTPAddr:                "127.0.0.1:0",
		GracefulShutdownTimeout: time.Second,
		LogLevel:                "error",
		Store:                   config.Store{Backend: config.BackendMemory},
		Matchmaking:             config.Matchmaking{ClaimAttempts: 5, ScanPage: 50, LobbyTTL: time.Hour, SweepInterval: time.Minute},
		Feed:                    config.Feed{Channel: "test:events"},
		Bot:                     config.Bot{CommandPrefix: "!", HistoryLimit: 5},
	}
}

func postJSON(t *testing.T, url string, body interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestApplicationEndToEndWithMemoryStore(t *testing.T) {
	instance, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	require.NotNil(t, instance.sweeper)
	assert.Nil(t, instance.redis)

	srv := httptest.NewServer(instance.http.Handler)
	defer srv.Close()

	first := postJSON(t, srv.URL+"/api/score", map[string]interface{}{"playerName": "Alice", "score": 100, "level": 1})
	assert.Equal(t, "waiting", first["matchmaking"].(map[string]interface{})["state"])

	second := postJSON(t, srv.URL+"/api/score", map[string]interface{}{"playerName": "Bob", "score": 80, "level": 1})
	mm := second["matchmaking"].(map[string]interface{})
	assert.Equal(t, "completed", mm["state"])
	assert.Equal(t, "Alice", mm["resolution"].(map[string]interface{})["winner"])

	reply := postJSON(t, srv.URL+"/api/bot/command", map[string]string{"sender": "Bob", "text": "!stats"})
	assert.Equal(t, "Open lobbies: 0 | Total matches: 1 | Active players: 2", reply["reply"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `matchmaking_submissions_total{outcome="completed"} 1`)

	ping, err := http.Get(srv.URL + "/v1/ping")
	require.NoError(t, err)
	ping.Body.Close()
	assert.Equal(t, http.StatusOK, ping.StatusCode)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Backend = "etcd"
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown store backend")
}
