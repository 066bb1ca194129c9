package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
agent:
  url: http://agent.internal:2024
  assistant_id: realestate
refresh:
  window: 2s
  debounce: 100ms
debug: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, "http://agent.internal:2024", cfg.Agent.URL)
	require.Equal(t, "realestate", cfg.Agent.AssistantID)
	require.Equal(t, 2*time.Second, cfg.Refresh.Window)
	require.Equal(t, 100*time.Millisecond, cfg.Refresh.Debounce)
	require.True(t, cfg.Debug)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
agent:
  url: http://from-file:2024
`)
	t.Setenv("CHATBRIDGE_AGENT_URL", "http://from-env:2024")
	t.Setenv("CHATBRIDGE_HTTP_ADDR", ":7070")
	t.Setenv("CHATBRIDGE_REFRESH_WINDOW", "6s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://from-env:2024", cfg.Agent.URL)
	require.Equal(t, ":7070", cfg.HTTP.Addr)
	require.Equal(t, 6*time.Second, cfg.Refresh.Window)
}

func TestDefaultsApply(t *testing.T) {
	t.Setenv("CHATBRIDGE_AGENT_URL", "http://agent:2024")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "agent", cfg.Agent.AssistantID)
	require.Equal(t, 4*time.Second, cfg.Refresh.Window)
}

func TestValidation(t *testing.T) {
	_, err := Load("")
	require.Error(t, err) // no agent URL

	t.Setenv("CHATBRIDGE_AGENT_URL", "http://agent:2024")
	t.Setenv("CHATBRIDGE_DEBUG", "not-a-bool")
	_, err = Load("")
	require.Error(t, err)
}

func TestMongoRequiresDatabase(t *testing.T) {
	t.Setenv("CHATBRIDGE_AGENT_URL", "http://agent:2024")
	t.Setenv("CHATBRIDGE_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("CHATBRIDGE_MONGO_DATABASE", "")

	// Database has a default, so overriding only the URI still validates.
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "chatbridge", cfg.Mongo.Database)
}

func TestMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
