package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7890", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.EventStoreBackend)
	assert.Equal(t, 64, cfg.MaxConcurrentSessions)
	assert.Equal(t, 30*time.Minute, cfg.IdleSuspendAfter)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Listen, cfg.Listen)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentrt.yaml")
	yamlContent := `
listen: 0.0.0.0:9000
eventStoreBackend: memory
maxConcurrentSessions: 10
idleSuspendAfter: 5m
toolTimeout: 30s
defaultModel: custom-model
mcpServers:
  search:
    transport: stdio
    command: mcp-search
    args: ["--flag"]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "memory", cfg.EventStoreBackend)
	assert.Equal(t, 10, cfg.MaxConcurrentSessions)
	assert.Equal(t, 5*time.Minute, cfg.IdleSuspendAfter)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "custom-model", cfg.DefaultModel)
	require.Contains(t, cfg.McpServers, "search")
	assert.Equal(t, "mcp-search", cfg.McpServers["search"].Command)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 0.0.0.0:9000\n"), 0644))

	t.Setenv("AGENTRT_LISTEN", "0.0.0.0:1234")
	t.Setenv("AGENTRT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:1234", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "agentrt.yaml")

	cfg := Default()
	cfg.Listen = "0.0.0.0:8080"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", loaded.Listen)
}

func TestGetPathsIsolatedByEnv(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))

	paths := GetPaths()
	assert.Equal(t, filepath.Join(tmp, "data", "agentrt"), paths.Data)
	assert.Equal(t, filepath.Join(tmp, "config", "agentrt"), paths.Config)
}
