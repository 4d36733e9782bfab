// Package sensor queries the host battery, AC adapter and thermal
// sources and normalizes them into a domain.Reading. A source that is
// unavailable never fails the whole read; it is recorded per-source.
package sensor

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// Reader implements domain.SensorReader.
type Reader struct {
	logger   *zap.Logger
	disabled bool // skip temperature/fan entirely

	// sysfs globs are fields so tests can point them at a fake tree.
	batteryGlob string
	acGlob      string
	thermalGlob string
	fanGlob     string

	mu            sync.Mutex
	sensorsBroken bool
}

// New creates a sensor reader. When disabled is set, thermal and fan
// sources report as disabled rather than errored.
func New(logger *zap.Logger, disabled bool) *Reader {
	return &Reader{
		logger:      logger,
		disabled:    disabled,
		batteryGlob: "/sys/class/power_supply/BAT*",
		acGlob:      "/sys/class/power_supply/AC*/online",
		thermalGlob: "/sys/class/thermal/thermal_zone*/temp",
		fanGlob:     "/sys/class/hwmon/hwmon*/fan*_input",
	}
}

// Read collects a best-effort snapshot. It always succeeds; failed
// sources appear in Reading.SourceErrors.
func (r *Reader) Read(ctx context.Context) domain.Reading {
	var reading domain.Reading

	percent, state, err := r.readBattery(ctx)
	if err != nil {
		r.logger.Debug("battery source unavailable", zap.Error(err))
		reading.SourceErrors = append(reading.SourceErrors, domain.SourceBattery)
	} else {
		reading.BatteryPercent = &percent
		reading.ChargeState = state
		ac := r.onAC(state)
		reading.OnAC = &ac
	}

	if r.disabled {
		reading.SensorsDisabled = true
		return reading
	}

	temp, fan := r.readThermal(ctx)
	if temp != nil {
		rounded := math.Round(*temp*10) / 10
		reading.TemperatureC = &rounded
	} else {
		reading.SourceErrors = append(reading.SourceErrors, domain.SourceTemperature)
	}
	if fan != nil {
		reading.FanRPM = fan
	} else {
		reading.SourceErrors = append(reading.SourceErrors, domain.SourceFan)
	}

	return reading
}

// readThermal tries sensors(1) first, then gopsutil, then raw sysfs.
func (r *Reader) readThermal(ctx context.Context) (*float64, *int) {
	var temp *float64
	var fan *int

	if data, err := r.sensorsJSON(ctx); err == nil {
		t, f, perr := parseSensorsJSON(data)
		if perr != nil {
			r.logger.Debug("sensors output unparseable", zap.Error(perr))
		} else {
			temp, fan = t, f
		}
	}

	if temp == nil {
		if t, err := gopsutilTemp(ctx); err == nil {
			temp = t
		} else if t, err := r.sysfsTemp(); err == nil {
			temp = t
		} else {
			r.logger.Debug("temperature source unavailable", zap.Error(err))
		}
	}

	if fan == nil {
		if f, err := r.sysfsFan(); err == nil {
			fan = f
		} else {
			r.logger.Debug("fan source unavailable", zap.Error(err))
		}
	}

	return temp, fan
}
