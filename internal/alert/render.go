package alert

import (
	"fmt"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// StatusText renders the on-demand /battery reply.
func StatusText(r domain.Reading) string {
	if r.BatteryPercent == nil {
		return "Не удалось прочитать состояние батареи."
	}
	return fmt.Sprintf("Батарея: %d%% (%s)\nТемпература (CPU): %s\nКулер: %s",
		*r.BatteryPercent, stateText(r), tempText(r), fanText(r))
}

func percentText(r domain.Reading) string {
	if r.BatteryPercent == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d%%", *r.BatteryPercent)
}

func stateText(r domain.Reading) string {
	if r.ChargeState == "" {
		return "unknown"
	}
	return r.ChargeState
}

func tempText(r domain.Reading) string {
	if r.SensorsDisabled {
		return "отключено"
	}
	if r.TemperatureC == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f°C", *r.TemperatureC)
}

func fanText(r domain.Reading) string {
	if r.SensorsDisabled {
		return "отключено"
	}
	if r.FanRPM == nil {
		return "n/a"
	}
	if *r.FanRPM > 0 {
		return fmt.Sprintf("работает ~ %d RPM", *r.FanRPM)
	}
	return "выключен/простой"
}
