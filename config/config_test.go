package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	testutil.Chdir(t, t.TempDir())
	t.Setenv(EnvVault, "")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Empty(t, cfg.Source)
}

func TestLoad_FromWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
vault: kv-dev
output: pipelines/env
keyPolicy: store
environmentSuffix: true
rateLimit: 2.5
maxConsecutiveFailures: 3
notify: true
cacheTTL: 30m
`)
	testutil.Chdir(t, dir)
	t.Setenv(EnvVault, "")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "kv-dev", cfg.Vault)
	assert.Equal(t, "pipelines/env", cfg.Output)
	assert.Equal(t, envfile.UnderscoresToHyphens, cfg.Policy())
	assert.True(t, cfg.EnvironmentSuffix)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 3, cfg.MaxConsecutiveFailures)
	assert.True(t, cfg.Notify)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, DefaultFileName, cfg.Source)

	opts := cfg.UploadOptions()
	assert.Equal(t, 2.5, opts.RateLimit)
	assert.Equal(t, 3, opts.MaxConsecutiveFailures)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "vault: kv-dev\n")
	t.Setenv(EnvVault, "")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "kv-dev", cfg.Vault)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultMaxConsecutiveFailures, cfg.MaxConsecutiveFailures)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "vault: kv-file\n")
	t.Setenv(EnvVault, "kv-env")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "kv-env", cfg.Vault)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "vualt: typo\n"},
		{"bad policy", "keyPolicy: upper\n"},
		{"negative rate", "rateLimit: -1\n"},
		{"negative failures", "maxConsecutiveFailures: -2\n"},
		{"bad duration", "cacheTTL: soon\n"},
		{"not yaml", "vault: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)

			_, err := Load(path)

			assert.Error(t, err)
		})
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	t.Setenv(EnvVault, "")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultOutput, cfg.Output)
}
