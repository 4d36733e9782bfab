package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// cpuLabels are vendor-specific labels that identify the CPU package
// sensor in sensors(1) output. Readings under these win over others.
var cpuLabels = []string{"Package id", "Tctl", "Tdie"}

// sensorsJSON shells out to `sensors -j`. After the first failure the
// broken latch is set and the tool is not retried for the process
// lifetime; callers fall back to other sources.
func (r *Reader) sensorsJSON(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	broken := r.sensorsBroken
	r.mu.Unlock()
	if broken {
		return nil, fmt.Errorf("sensors marked broken")
	}

	out, err := exec.CommandContext(ctx, "sensors", "-j").Output()
	if err != nil {
		r.mu.Lock()
		r.sensorsBroken = true
		r.mu.Unlock()
		return nil, fmt.Errorf("sensors -j: %w", err)
	}
	return out, nil
}

// parseSensorsJSON extracts the best CPU temperature and the maximum
// fan RPM from sensors(1) JSON output. Either result may be nil.
func parseSensorsJSON(data []byte) (*float64, *int, error) {
	var root map[string]map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, nil, fmt.Errorf("parse sensors json: %w", err)
	}

	var best *float64
	var bestIsCPU bool
	var maxRPM *int

	for _, chip := range root {
		for label, rawValues := range chip {
			values, ok := rawValues.(map[string]any)
			if !ok {
				continue // e.g. the "Adapter" string
			}

			var temps []float64
			for key, rawValue := range values {
				v, ok := rawValue.(float64)
				if !ok {
					continue
				}
				switch {
				case strings.HasPrefix(key, "temp") && strings.HasSuffix(key, "_input"):
					temps = append(temps, v)
				case strings.HasPrefix(key, "fan") && strings.HasSuffix(key, "_input"):
					rpm := int(v)
					if maxRPM == nil || rpm > *maxRPM {
						maxRPM = &rpm
					}
				}
			}
			if len(temps) == 0 {
				continue
			}

			tmax := temps[0]
			for _, t := range temps[1:] {
				if t > tmax {
					tmax = t
				}
			}

			isCPU := false
			for _, p := range cpuLabels {
				if strings.Contains(strings.ToLower(label), strings.ToLower(p)) {
					isCPU = true
					break
				}
			}

			switch {
			case isCPU && (!bestIsCPU || best == nil || tmax > *best):
				t := tmax
				best = &t
				bestIsCPU = true
			case !bestIsCPU && best == nil:
				t := tmax
				best = &t
			}
		}
	}

	return best, maxRPM, nil
}

// gopsutilTemp asks gopsutil for host temperatures and returns the
// hottest plausible value. Used when sensors(1) is unavailable.
func gopsutilTemp(ctx context.Context) (*float64, error) {
	stats, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var best *float64
	for _, s := range stats {
		t := s.Temperature
		if t <= 0 || t > 150 {
			continue
		}
		if best == nil || t > *best {
			v := t
			best = &v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no usable temperature sensors")
	}
	return best, nil
}

// sysfsTemp reads thermal zones directly. Values above 1000 are
// millidegrees.
func (r *Reader) sysfsTemp() (*float64, error) {
	matches, err := filepath.Glob(r.thermalGlob)
	if err != nil {
		return nil, err
	}

	var best *float64
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		iv, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			continue
		}
		t := float64(iv)
		if iv > 1000 {
			t = float64(iv) / 1000.0
		}
		if best == nil || t > *best {
			v := t
			best = &v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no thermal zones under %s", r.thermalGlob)
	}
	return best, nil
}

// sysfsFan reads hwmon fan inputs and returns the maximum RPM.
func (r *Reader) sysfsFan() (*int, error) {
	matches, err := filepath.Glob(r.fanGlob)
	if err != nil {
		return nil, err
	}

	var maxRPM *int
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rpm, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			continue
		}
		if maxRPM == nil || rpm > *maxRPM {
			v := rpm
			maxRPM = &v
		}
	}
	if maxRPM == nil {
		return nil, fmt.Errorf("no fan inputs under %s", r.fanGlob)
	}
	return maxRPM, nil
}
