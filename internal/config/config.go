// Package config loads process-wide configuration from a TOML file
// with environment variable overrides. Environment names match the
// ones the bot historically used (BOT_TOKEN, CHECK_INTERVAL_SEC, ...).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	minPollIntervalSeconds = 5
	maxPollIntervalSeconds = 3600
	minTimeoutSeconds      = 1
	maxTimeoutSeconds      = 300
	minReplyChars          = 256
)

type Config struct {
	// BotToken comes from the environment only; it is never written
	// to or read from the config file.
	BotToken string `toml:"-"`

	StateDir string `toml:"state_dir"`
	LogPath  string `toml:"log_path"`

	Poll    PollConfig    `toml:"poll"`
	Alerts  AlertConfig   `toml:"alerts"`
	Shell   ShellConfig   `toml:"shell"`
	Sensors SensorConfig  `toml:"sensors"`
	Admin   AdminDefaults `toml:"admin"`
}

type PollConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

type AlertConfig struct {
	LowThreshold      int `toml:"low_threshold"`
	RecoveryThreshold int `toml:"recovery_threshold"`
}

type ShellConfig struct {
	ExecTimeoutSeconds int `toml:"exec_timeout_seconds"`
	RunTimeoutSeconds  int `toml:"run_timeout_seconds"`
	MaxReplyChars      int `toml:"max_reply_chars"`
}

type SensorConfig struct {
	Disabled bool `toml:"disabled"`
}

// AdminDefaults seed the persisted admin config on first run only.
// After that the stored values win.
type AdminDefaults struct {
	ChatID            int64 `toml:"chat_id"`
	EnableUnsafeShell bool  `toml:"enable_unsafe_shell"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		StateDir: filepath.Join(home, ".battery_bot"),
		LogPath:  filepath.Join(home, ".battery_bot", "battbot.log"),
		Poll: PollConfig{
			IntervalSeconds: 60,
		},
		Alerts: AlertConfig{
			LowThreshold:      20,
			RecoveryThreshold: 25,
		},
		Shell: ShellConfig{
			ExecTimeoutSeconds: 25,
			RunTimeoutSeconds:  20,
			MaxReplyChars:      3800,
		},
		Sensors: SensorConfig{
			Disabled: false,
		},
	}
}

// Load reads the config file at path (missing file is not an error;
// defaults are used), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	return validate(cfg)
}

func applyEnv(cfg *Config) {
	cfg.BotToken = os.Getenv("BOT_TOKEN")

	if v := os.Getenv("STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v, ok := envInt("CHECK_INTERVAL_SEC"); ok {
		cfg.Poll.IntervalSeconds = v
	}
	if v, ok := envInt("ALERT_THRESHOLD"); ok {
		cfg.Alerts.LowThreshold = v
	}
	if v, ok := envInt("ALERT_HYSTERESIS"); ok {
		cfg.Alerts.RecoveryThreshold = v
	}
	if v, ok := envInt64("ADMIN_CHAT_ID"); ok {
		cfg.Admin.ChatID = v
	}
	if v, ok := envBool("ENABLE_UNSAFE_SHELL"); ok {
		cfg.Admin.EnableUnsafeShell = v
	}
	if v, ok := envBool("DISABLE_SENSORS"); ok {
		cfg.Sensors.Disabled = v
	}
}

func envInt(name string) (int, bool) {
	v, ok := envInt64(name)
	return int(v), ok
}

func envInt64(name string) (int64, bool) {
	s := os.Getenv(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(name string) (bool, bool) {
	s := strings.ToLower(os.Getenv(name))
	if s == "" {
		return false, false
	}
	switch s {
	case "1", "true", "yes", "on":
		return true, true
	default:
		return false, true
	}
}

func validate(cfg *Config) (*Config, error) {
	if strings.TrimSpace(cfg.StateDir) == "" {
		return nil, fmt.Errorf("state_dir must not be empty")
	}

	if err := validateRange("poll.interval_seconds", cfg.Poll.IntervalSeconds, minPollIntervalSeconds, maxPollIntervalSeconds); err != nil {
		return nil, err
	}
	if err := validateRange("alerts.low_threshold", cfg.Alerts.LowThreshold, 1, 99); err != nil {
		return nil, err
	}
	if err := validateRange("alerts.recovery_threshold", cfg.Alerts.RecoveryThreshold, 2, 100); err != nil {
		return nil, err
	}
	// The hysteresis band must be non-empty or alerts would flap.
	if cfg.Alerts.RecoveryThreshold <= cfg.Alerts.LowThreshold {
		return nil, fmt.Errorf("alerts.recovery_threshold (%d) must be greater than alerts.low_threshold (%d)",
			cfg.Alerts.RecoveryThreshold, cfg.Alerts.LowThreshold)
	}
	if err := validateRange("shell.exec_timeout_seconds", cfg.Shell.ExecTimeoutSeconds, minTimeoutSeconds, maxTimeoutSeconds); err != nil {
		return nil, err
	}
	if err := validateRange("shell.run_timeout_seconds", cfg.Shell.RunTimeoutSeconds, minTimeoutSeconds, maxTimeoutSeconds); err != nil {
		return nil, err
	}
	if cfg.Shell.MaxReplyChars < minReplyChars {
		return nil, fmt.Errorf("shell.max_reply_chars must be at least %d, got %d", minReplyChars, cfg.Shell.MaxReplyChars)
	}

	return cfg, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}
	return nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".battery_bot", "config.toml")
}
