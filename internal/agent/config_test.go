package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.GetInt("delivery.retries"))
	assert.Equal(t, 300, cfg.GetInt("delivery.timeout"))
	assert.Equal(t, 4096, cfg.GetInt("monitor.dedup_limit"))
	assert.Equal(t, 30, cfg.GetInt("executor.poll_interval"))
	assert.Equal(t, "info", cfg.GetString("log.level"))
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[log]
level = "debug"

[service]
log_url = "https://api.example.test/events/"

[delivery]
retries = 5

[vitals]
interval = 60
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "iq-agent.toml"), []byte(content), 0o600))
	chdir(t, dir)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.GetString("log.level"))
	assert.Equal(t, 5, cfg.GetInt("delivery.retries"))
	assert.Equal(t, 60, cfg.GetInt("vitals.interval"))

	url, err := cfg.RequireString("service.log_url")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test/events/", url)
}

func TestHasDistinguishesAbsence(t *testing.T) {
	dir := t.TempDir()
	content := `
[executor]
enabled = false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "iq-agent.toml"), []byte(content), 0o600))
	chdir(t, dir)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// A present-but-false value is still present.
	assert.True(t, cfg.Has("executor.enabled"))
	assert.False(t, cfg.GetBool("executor.enabled"))

	// Absent keys are absent, not falsy.
	assert.False(t, cfg.Has("service.command_url"))
}

func TestRequireStringMissing(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	_, err = cfg.RequireString("security.access_token")
	assert.ErrorContains(t, err, "security.access_token")
}
