package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestLoad_DocumentOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "revbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
source_host:
  base_url: https://github.example.com/api/v3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://github.example.com/api/v3", cfg.SourceHost.BaseURL)
	// Untouched defaults survive the merge.
	assert.Equal(t, Defaults().LLM.DefaultModel, cfg.LLM.DefaultModel)
}

func TestLoad_ExpandsEnvironmentVariablesBeforeParsing(t *testing.T) {
	os.Setenv("REVBOT_TEST_BASE_URL", "https://ghe.internal/api/v3")
	defer os.Unsetenv("REVBOT_TEST_BASE_URL")

	dir := t.TempDir()
	path := filepath.Join(dir, "revbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source_host:\n  base_url: ${REVBOT_TEST_BASE_URL}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.internal/api/v3", cfg.SourceHost.BaseURL)
}

func TestLoad_ResolvesSecretsFromEnv(t *testing.T) {
	os.Setenv("SOURCE_HOST_TOKEN", "ghp_test123")
	defer os.Unsetenv("SOURCE_HOST_TOKEN")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ghp_test123", cfg.SourceHost.Token)
}

func TestLoad_RejectsInvalidPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "revbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
