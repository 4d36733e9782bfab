package sensor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const upowerBatteryDevice = "/org/freedesktop/UPower/devices/battery_BAT0"

var (
	upowerPercentRe = regexp.MustCompile(`percentage:\s*(\d+)%`)
	upowerStateRe   = regexp.MustCompile(`state:\s*([\w-]+)`)
)

// readBattery returns (percent, state) from upower, falling back to
// /sys/class/power_supply when upower is missing or unparseable.
func (r *Reader) readBattery(ctx context.Context) (int, string, error) {
	if percent, state, err := r.readUpower(ctx); err == nil {
		return percent, state, nil
	}
	return r.readSysfsBattery()
}

func (r *Reader) readUpower(ctx context.Context) (int, string, error) {
	out, err := exec.CommandContext(ctx, "upower", "-i", upowerBatteryDevice).Output()
	if err != nil {
		return 0, "", fmt.Errorf("upower: %w", err)
	}

	pm := upowerPercentRe.FindSubmatch(out)
	sm := upowerStateRe.FindSubmatch(out)
	if pm == nil || sm == nil {
		return 0, "", fmt.Errorf("upower: no percentage/state in output")
	}

	percent, err := strconv.Atoi(string(pm[1]))
	if err != nil {
		return 0, "", fmt.Errorf("upower: bad percentage: %w", err)
	}
	return percent, string(sm[1]), nil
}

func (r *Reader) readSysfsBattery() (int, string, error) {
	matches, err := filepath.Glob(r.batteryGlob)
	if err != nil || len(matches) == 0 {
		return 0, "", fmt.Errorf("no battery under %s", r.batteryGlob)
	}

	capData, err := os.ReadFile(filepath.Join(matches[0], "capacity"))
	if err != nil {
		return 0, "", fmt.Errorf("read capacity: %w", err)
	}
	percent, err := strconv.Atoi(strings.TrimSpace(string(capData)))
	if err != nil {
		return 0, "", fmt.Errorf("parse capacity: %w", err)
	}

	state := "unknown"
	if statusData, err := os.ReadFile(filepath.Join(matches[0], "status")); err == nil {
		state = strings.ToLower(strings.TrimSpace(string(statusData)))
	}
	return percent, state, nil
}

// acOnline checks /sys for any online AC adapter.
func (r *Reader) acOnline() bool {
	matches, err := filepath.Glob(r.acGlob)
	if err != nil {
		return false
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err == nil && strings.TrimSpace(string(data)) == "1" {
			return true
		}
	}
	return false
}

// onAC derives the plugged-in flag from the charge state string,
// consulting the AC adapter as a tie-breaker for ambiguous states.
func (r *Reader) onAC(state string) bool {
	switch state {
	case "charging", "fully-charged", "full", "not charging", "pending-charge":
		return true
	case "discharging", "empty":
		return false
	}
	return r.acOnline()
}
