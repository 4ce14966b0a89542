package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"webhook_secret": "s3cret"}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, "s3cret", cfg.WebhookSecret)
	require.Equal(t, "primary", cfg.CalendarID)
	require.Equal(t, "default", cfg.CalendarAccount)
	require.Equal(t, 7, cfg.DefaultDueDays)
	require.Equal(t, filepath.Join(dir, "classroom_sync.db"), cfg.DatabasePath)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"github_token": "file-token", "webhook_secret": "file-secret"}`), 0644))

	t.Setenv(EnvGitHubToken, "env-token")
	t.Setenv(EnvWebhookSecret, "env-secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.GitHubToken)
	require.Equal(t, "env-secret", cfg.WebhookSecret)
}

func TestCreateDefaultConfigDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	require.NoError(t, CreateDefaultConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.WebhookSecret = "customized"
	require.NoError(t, SaveConfig(cfg, path))

	require.NoError(t, CreateDefaultConfig(path))

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "customized", reloaded.WebhookSecret)
}
