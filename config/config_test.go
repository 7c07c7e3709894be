package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, ValidateConfig(NewDefaultConfig()))
}

func TestLoadFromFile(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"FOLLOWUP_BOSS_API_KEY", "PORT", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9090
crm:
  api_key: file-key
assignment:
  default_agent: Sam
  by_state:
    TX: Jordan
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-key", cfg.CRM.APIKey)
	assert.Equal(t, "Jordan", cfg.Assignment.ByState["TX"])
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched defaults survive
	assert.Equal(t, "https://api.followupboss.com/v1", cfg.CRM.BaseURL)
	assert.Equal(t, "/mcp", cfg.MCP.EndpointPath)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loglevel")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestApplyEnv(t *testing.T) {
	cfg := NewDefaultConfig()
	env := map[string]string{
		"FOLLOWUP_BOSS_API_KEY": "  env-key ",
		"PORT":                  "7070",
		"DISCORD_WEBHOOK_URL":   "https://discord.com/api/webhooks/1/abc",
		"LOG_LEVEL":             "warn",
	}

	ApplyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "env-key", cfg.CRM.APIKey)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", cfg.Notifications.DiscordWebhookURL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0:7070", cfg.Server.Addr())
}

func TestApplyEnvIgnoresBadPort(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyEnv(cfg, func(k string) string {
		if k == "PORT" {
			return "eighty"
		}
		return ""
	})
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(EnvConfigPath, "")

	assert.Equal(t, "explicit.yaml", ResolvePath("explicit.yaml"))
	assert.Equal(t, "", ResolvePath(""))

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{}"), 0o644))
	assert.Equal(t, DefaultConfigFile, ResolvePath(""))

	t.Setenv(EnvConfigPath, "/etc/callbridge.yaml")
	assert.Equal(t, "/etc/callbridge.yaml", ResolvePath(""))
}
