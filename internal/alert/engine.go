// Package alert decides when sensor readings become notifications.
// Evaluate is pure: no I/O, no clocks, same inputs produce the same
// outputs, which is what makes the hysteresis rules unit-testable.
package alert

import (
	"fmt"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// Evaluate compares a new reading against the previous alert state and
// returns the next state plus any notification texts to push.
//
// Rules:
//   - low alert fires crossing below th.Low while not already active;
//   - recovery fires at or above th.Recovery while active;
//   - inside the band nothing fires (anti-flapping);
//   - AC alerts fire strictly on edge and independently of the level;
//   - a missing battery percent carries the previous state forward.
func Evaluate(prev domain.AlertState, cur domain.Reading, th domain.Thresholds) (domain.AlertState, []string) {
	next := prev
	var msgs []string

	if cur.BatteryPercent != nil {
		p := *cur.BatteryPercent

		switch {
		case !prev.LowAlertActive && p < th.Low:
			next.LowAlertActive = true
			msgs = append(msgs, lowBatteryText(p, cur))
		case prev.LowAlertActive && p >= th.Recovery:
			next.LowAlertActive = false
			msgs = append(msgs, recoveryText(p, cur))
		}

		pc := p
		next.LastPercent = &pc
	}

	if cur.OnAC != nil {
		if prev.LastOnAC != nil && *cur.OnAC != *prev.LastOnAC {
			msgs = append(msgs, plugText(*cur.OnAC, cur))
		} else if prev.LastOnAC != nil && cur.ChargeState != "" &&
			prev.LastChargeState != "" && cur.ChargeState != prev.LastChargeState {
			// Same AC side but a different charge state, e.g.
			// charging -> full. Informational only.
			msgs = append(msgs, fmt.Sprintf("ℹ️ Состояние батареи: %s → %s • %s",
				prev.LastChargeState, cur.ChargeState, percentText(cur)))
		}

		ac := *cur.OnAC
		next.LastOnAC = &ac
	}
	if cur.ChargeState != "" {
		next.LastChargeState = cur.ChargeState
	}

	return next, msgs
}

func lowBatteryText(percent int, r domain.Reading) string {
	return fmt.Sprintf("⚠️ Низкий заряд: %d%% (%s)\nТемпература: %s\nКулер: %s",
		percent, stateText(r), tempText(r), fanText(r))
}

func recoveryText(percent int, r domain.Reading) string {
	return fmt.Sprintf("✅ Заряд восстановился до %d%%\nТемпература: %s\nКулер: %s",
		percent, tempText(r), fanText(r))
}

func plugText(onAC bool, r domain.Reading) string {
	if onAC {
		return fmt.Sprintf("🔌 Питание ПОДКЛЮЧЕНО • %s", percentText(r))
	}
	return fmt.Sprintf("🔋 Питание ОТКЛЮЧЕНО • %s", percentText(r))
}
