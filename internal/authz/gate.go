// Package authz gates privileged bot actions on the configured admin
// identity. Everything fails closed: a storage error or an unset
// admin id denies, never grants.
package authz

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// ErrDenied is returned when the requester is not authorized for the
// attempted change.
var ErrDenied = errors.New("permission denied")

// Gate decides whether a chat may perform privileged actions.
type Gate struct {
	mu     sync.Mutex
	store  domain.AdminStore
	logger *zap.Logger
}

// New creates a Gate backed by the given admin store.
func New(store domain.AdminStore, logger *zap.Logger) *Gate {
	return &Gate{store: store, logger: logger}
}

// IsAdmin reports whether chatID is the configured admin. An unset
// admin id matches nobody.
func (g *Gate) IsAdmin(chatID int64) bool {
	cfg, err := g.store.Load()
	if err != nil {
		g.logger.Warn("admin config unavailable, denying", zap.Error(err))
		return false
	}
	return cfg.AdminChatID != 0 && cfg.AdminChatID == chatID
}

// ShellAllowed reports whether chatID may use the unsafe shell. True
// only for the admin and only while the shell flag is on.
func (g *Gate) ShellAllowed(chatID int64) bool {
	cfg, err := g.store.Load()
	if err != nil {
		g.logger.Warn("admin config unavailable, denying", zap.Error(err))
		return false
	}
	return cfg.AdminChatID != 0 && cfg.AdminChatID == chatID && cfg.UnsafeShellEnabled
}

// SetAdmin changes the admin identity. The first call while no admin
// is configured bootstraps; after that only the current admin may
// change it.
func (g *Gate) SetAdmin(requester, newAdmin int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg, err := g.store.Load()
	if err != nil {
		return ErrDenied
	}
	if cfg.AdminChatID != 0 && cfg.AdminChatID != requester {
		return ErrDenied
	}
	return g.store.SetAdmin(newAdmin)
}

// SetShellEnabled toggles the unsafe-shell flag. Admin only.
func (g *Gate) SetShellEnabled(requester int64, on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg, err := g.store.Load()
	if err != nil {
		return ErrDenied
	}
	if cfg.AdminChatID == 0 || cfg.AdminChatID != requester {
		return ErrDenied
	}
	return g.store.SetShellEnabled(on)
}

// Status returns the current admin config for /adminstatus.
func (g *Gate) Status() (domain.AdminConfig, error) {
	return g.store.Load()
}
