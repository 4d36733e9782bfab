package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearBotEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"BOT_TOKEN", "STATE_DIR", "CHECK_INTERVAL_SEC",
		"ALERT_THRESHOLD", "ALERT_HYSTERESIS",
		"ADMIN_CHAT_ID", "ENABLE_UNSAFE_SHELL", "DISABLE_SENSORS",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearBotEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Poll.IntervalSeconds)
	assert.Equal(t, 20, cfg.Alerts.LowThreshold)
	assert.Equal(t, 25, cfg.Alerts.RecoveryThreshold)
	assert.Equal(t, 3800, cfg.Shell.MaxReplyChars)
	assert.False(t, cfg.Sensors.Disabled)
	assert.Zero(t, cfg.Admin.ChatID)
}

func TestLoad_FileValues(t *testing.T) {
	clearBotEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
state_dir = "/var/lib/battbot"

[poll]
interval_seconds = 30

[alerts]
low_threshold = 15
recovery_threshold = 30

[admin]
chat_id = 123456
enable_unsafe_shell = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/battbot", cfg.StateDir)
	assert.Equal(t, 30, cfg.Poll.IntervalSeconds)
	assert.Equal(t, 15, cfg.Alerts.LowThreshold)
	assert.Equal(t, 30, cfg.Alerts.RecoveryThreshold)
	assert.Equal(t, int64(123456), cfg.Admin.ChatID)
	assert.True(t, cfg.Admin.EnableUnsafeShell)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearBotEnv(t)
	t.Setenv("BOT_TOKEN", "12345:token")
	t.Setenv("CHECK_INTERVAL_SEC", "120")
	t.Setenv("ADMIN_CHAT_ID", "987654")
	t.Setenv("DISABLE_SENSORS", "1")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[poll]\ninterval_seconds = 30\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "12345:token", cfg.BotToken)
	assert.Equal(t, 120, cfg.Poll.IntervalSeconds)
	assert.Equal(t, int64(987654), cfg.Admin.ChatID)
	assert.True(t, cfg.Sensors.Disabled)
}

func TestLoad_RejectsEmptyHysteresisBand(t *testing.T) {
	clearBotEnv(t)
	t.Setenv("ALERT_THRESHOLD", "25")
	t.Setenv("ALERT_HYSTERESIS", "25")

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recovery_threshold")
}

func TestLoad_RejectsBadInterval(t *testing.T) {
	clearBotEnv(t)
	t.Setenv("CHECK_INTERVAL_SEC", "1")

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval_seconds")
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value  string
		want   bool
		wantOK bool
	}{
		{"1", true, true},
		{"true", true, true},
		{"YES", true, true},
		{"on", true, true},
		{"0", false, true},
		{"off", false, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("ENABLE_UNSAFE_SHELL", tt.value)
			got, ok := envBool("ENABLE_UNSAFE_SHELL")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
