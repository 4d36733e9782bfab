package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// NotifierConfig bounds the retry behavior for outbound messages.
type NotifierConfig struct {
	MaxAttempts int           // Total send attempts per message (default 3)
	BaseBackoff time.Duration // Delay before the first retry, doubled after each failure
}

// DefaultNotifierConfig returns default notifier configuration.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
	}
}

// Notifier sends messages through a transport with bounded retry.
// Delivery is best effort: after the last failed attempt the error is
// returned and the message is dropped, never queued.
type Notifier struct {
	config    NotifierConfig
	transport domain.Transport
	logger    *zap.Logger
}

// NewNotifier creates a new notifier.
func NewNotifier(config NotifierConfig, transport domain.Transport, logger *zap.Logger) *Notifier {
	return &Notifier{
		config:    config,
		transport: transport,
		logger:    logger,
	}
}

// Notify sends one message to one chat, retrying on failure.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	backoff := n.config.BaseBackoff
	var lastErr error

	for attempt := 1; attempt <= n.config.MaxAttempts; attempt++ {
		lastErr = n.transport.Send(ctx, chatID, text)
		if lastErr == nil {
			return nil
		}

		if attempt == n.config.MaxAttempts {
			break
		}

		n.logger.Debug("send failed, retrying",
			zap.Int64("chat_id", chatID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return lastErr
}
