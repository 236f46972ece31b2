package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": "9090"},
		"api": {"base_url": "http://backend:8000", "timeout": "5s"},
		"scheduler": {"poll_interval": "10s"}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "http://backend:8000", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.APITimeout())
	assert.Equal(t, 10*time.Second, cfg.PollInterval())
	assert.Equal(t, time.Second, cfg.SettleDelay())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, "API_TOKEN", cfg.API.TokenEnv)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://env-backend:8000")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "45s")
	t.Setenv("SCHEDULER_SETTLE_DELAY", "2s")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "http://env-backend:8000", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.PollInterval())
	assert.Equal(t, 2*time.Second, cfg.SettleDelay())
	assert.Equal(t, "https://hooks.slack.test/x", cfg.Slack.WebhookURL)
	assert.Equal(t, 15*time.Second, cfg.APITimeout())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.timeout")
}

func TestLoadRejectsSubSecondPollInterval(t *testing.T) {
	t.Setenv("SCHEDULER_POLL_INTERVAL", "500ms")

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.poll_interval")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
