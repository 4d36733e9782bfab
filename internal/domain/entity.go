// Package domain contains core business entities and interfaces.
// This is the innermost layer - no external dependencies.
package domain

import "time"

// Sensor source names recorded in Reading.SourceErrors.
const (
	SourceBattery     = "battery"
	SourceTemperature = "temperature"
	SourceFan         = "fan"
)

// Reading is one best-effort snapshot of the host sensors.
// Produced fresh on every poll; a nil field means the source
// had no data this cycle.
type Reading struct {
	BatteryPercent *int
	ChargeState    string // upower state: charging/discharging/full/unknown
	OnAC           *bool
	TemperatureC   *float64
	FanRPM         *int

	// SensorsDisabled is set when thermal/fan collection was skipped
	// by configuration, as opposed to having failed.
	SensorsDisabled bool

	// SourceErrors lists sources that were unavailable this cycle.
	SourceErrors []string
}

// HasError reports whether the named source failed during this reading.
func (r Reading) HasError(source string) bool {
	for _, s := range r.SourceErrors {
		if s == source {
			return true
		}
	}
	return false
}

// AlertState is the persisted alerting memory compared against each
// new Reading. LowAlertActive implements the hysteresis band: it is
// raised crossing below the low threshold and cleared only at or
// above the recovery threshold.
type AlertState struct {
	LastPercent     *int
	LastOnAC        *bool
	LastChargeState string
	LowAlertActive  bool
}

// Thresholds holds the hysteresis band for low-battery alerts.
// Recovery must be strictly greater than Low.
type Thresholds struct {
	Low      int
	Recovery int
}

// AdminConfig holds the privileged-access settings.
// Zero AdminChatID means no admin is configured (fail closed).
type AdminConfig struct {
	AdminChatID        int64
	UnsafeShellEnabled bool
}

// ShellSession tracks one open interactive console for a chat.
type ShellSession struct {
	Cwd      string
	OpenedAt time.Time
}

// ExecResult captures the outcome of one host command execution.
type ExecResult struct {
	Output   string // combined stdout+stderr
	ExitCode int
	TimedOut bool
}

// SafeCommand is one allow-listed host command. Argv is executed
// directly, never through a shell.
type SafeCommand struct {
	Argv     []string
	MaxLines int // truncate output to this many lines; 0 = unlimited
}
