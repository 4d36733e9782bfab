// Package daemon implements the background polling loop.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gregkorneev/alt-station/internal/alert"
	"github.com/gregkorneev/alt-station/internal/domain"
)

// MonitorConfig holds monitor daemon configuration.
type MonitorConfig struct {
	PollInterval time.Duration // How often to read sensors (default 60s)
	Thresholds   domain.Thresholds
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval: 60 * time.Second,
		Thresholds:   domain.Thresholds{Low: 20, Recovery: 25},
	}
}

// Monitor is the polling daemon. On each tick it reads the sensors,
// evaluates threshold and power-source transitions against the
// persisted state, fans out any alerts to subscribers, and saves the
// new state. Polls are synchronous; a tick that fires while a poll is
// still running is dropped by the ticker.
type Monitor struct {
	config     MonitorConfig
	sensors    domain.SensorReader
	stateStore domain.AlertStateStore
	subs       domain.SubscriberStore
	notifier   *Notifier
	logger     *zap.Logger
}

// NewMonitor creates a new monitor daemon.
func NewMonitor(
	config MonitorConfig,
	sensors domain.SensorReader,
	stateStore domain.AlertStateStore,
	subs domain.SubscriberStore,
	notifier *Notifier,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:     config,
		sensors:    sensors,
		stateStore: stateStore,
		subs:       subs,
		notifier:   notifier,
		logger:     logger,
	}
}

// Run starts the monitor loop.
// This blocks until context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		zap.Duration("poll_interval", m.config.PollInterval),
		zap.Int("threshold_low", m.config.Thresholds.Low),
		zap.Int("threshold_recovery", m.config.Thresholds.Recovery))

	// Poll immediately on startup so the persisted state reflects the
	// current host before the first tick.
	m.poll(ctx)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll performs one read-evaluate-notify-save cycle.
func (m *Monitor) poll(ctx context.Context) {
	reading := m.sensors.Read(ctx)
	for _, src := range reading.SourceErrors {
		m.logger.Warn("sensor source unavailable", zap.String("source", src))
	}

	prev, err := m.stateStore.LoadAlertState()
	if err != nil {
		m.logger.Error("failed to load alert state, skipping cycle", zap.Error(err))
		return
	}

	next, alerts := alert.Evaluate(prev, reading, m.config.Thresholds)

	for _, text := range alerts {
		m.broadcast(ctx, text)
	}

	if err := m.stateStore.SaveAlertState(next); err != nil {
		m.logger.Error("failed to save alert state", zap.Error(err))
	}
}

// broadcast fans one alert out to every subscriber. A failure for one
// chat does not block delivery to the others.
func (m *Monitor) broadcast(ctx context.Context, text string) {
	ids, err := m.subs.All()
	if err != nil {
		m.logger.Error("failed to list subscribers", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		m.logger.Debug("alert with no subscribers", zap.String("text", text))
		return
	}

	m.logger.Info("broadcasting alert",
		zap.String("text", text),
		zap.Int("subscribers", len(ids)))

	for _, chatID := range ids {
		if err := m.notifier.Notify(ctx, chatID, text); err != nil {
			m.logger.Warn("alert delivery failed",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}
}
