// Package transport adapts the Telegram Bot API to the domain
// Transport interface and feeds inbound messages to a handler.
package transport

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// Handler processes one inbound message and returns the reply text.
// An empty reply means nothing is sent back.
type Handler func(ctx context.Context, chatID int64, text string) string

// Telegram is the long-polling Telegram transport.
type Telegram struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger

	mu      sync.Mutex
	workers map[int64]chan tgbotapi.Update
	wg      sync.WaitGroup
}

var _ domain.Transport = (*Telegram)(nil)

// New authenticates against the Bot API with the given token.
func New(token string, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Telegram{
		api:     api,
		logger:  logger,
		workers: make(map[int64]chan tgbotapi.Update),
	}, nil
}

// Send delivers one message to one chat.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// Listen consumes updates until the context is canceled. Messages are
// serialized per chat: a long-running shell command in one chat never
// delays replies to another, but within one chat ordering is kept.
func (t *Telegram) Listen(ctx context.Context, handler Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := t.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		t.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		t.dispatch(ctx, update, handler)
	}

	t.mu.Lock()
	for _, ch := range t.workers {
		close(ch)
	}
	t.workers = make(map[int64]chan tgbotapi.Update)
	t.mu.Unlock()
	t.wg.Wait()

	return ctx.Err()
}

// dispatch hands an update to the chat's worker goroutine, starting
// one on first contact.
func (t *Telegram) dispatch(ctx context.Context, update tgbotapi.Update, handler Handler) {
	chatID := update.Message.Chat.ID

	t.mu.Lock()
	ch, ok := t.workers[chatID]
	if !ok {
		ch = make(chan tgbotapi.Update, 16)
		t.workers[chatID] = ch
		t.wg.Add(1)
		go t.runWorker(ctx, chatID, ch, handler)
	}
	t.mu.Unlock()

	// Block when the chat's queue is full rather than drop: a queued
	// /exit must survive a long-running session command.
	select {
	case ch <- update:
	case <-ctx.Done():
	}
}

func (t *Telegram) runWorker(ctx context.Context, chatID int64, ch <-chan tgbotapi.Update, handler Handler) {
	defer t.wg.Done()

	for update := range ch {
		reply := handler(ctx, chatID, update.Message.Text)
		if reply == "" {
			continue
		}
		if err := t.Send(ctx, chatID, reply); err != nil {
			t.logger.Error("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}
