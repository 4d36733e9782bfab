// Package session implements the per-chat interactive console state
// machine: CLOSED -> (/linux) -> OPEN -> (/exit) -> CLOSED. Sessions
// live in memory only; a restart closes everything.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gregkorneev/alt-station/internal/domain"
)

var (
	ErrAlreadyOpen  = errors.New("session already open")
	ErrNotOpen      = errors.New("no open session")
	ErrNotDirectory = errors.New("not a directory")
)

// Manager tracks open shell sessions keyed by chat id. Each chat has
// at most one session; sessions are never shared across chats.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*domain.ShellSession
	home     string
}

// NewManager creates a session manager. home is the starting working
// directory for fresh sessions.
func NewManager(home string) *Manager {
	return &Manager{
		sessions: make(map[int64]*domain.ShellSession),
		home:     home,
	}
}

// Open creates a session for the chat with cwd set to home.
func (m *Manager) Open(chatID int64) (*domain.ShellSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[chatID]; ok {
		return nil, ErrAlreadyOpen
	}
	s := &domain.ShellSession{Cwd: m.home, OpenedAt: time.Now()}
	m.sessions[chatID] = s
	return s, nil
}

// Get returns the open session for the chat, if any.
func (m *Manager) Get(chatID int64) (*domain.ShellSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	return s, ok
}

// Close destroys the chat's session. Returns false if none was open.
func (m *Manager) Close(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[chatID]; !ok {
		return false
	}
	delete(m.sessions, chatID)
	return true
}

// Pwd returns the session's current working directory.
func (m *Manager) Pwd(chatID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return "", ErrNotOpen
	}
	return s.Cwd, nil
}

// Cd changes the session's working directory. The target must exist
// and be a directory; relative paths resolve against the current cwd
// and ~ expands to home. An empty target resets to home. On any
// failure the cwd is left unchanged.
func (m *Manager) Cd(chatID int64, target string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return "", ErrNotOpen
	}

	if strings.TrimSpace(target) == "" {
		s.Cwd = m.home
		return s.Cwd, nil
	}

	path := m.expandHome(target)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Cwd, path)
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	s.Cwd = path
	return s.Cwd, nil
}

// CloseAll destroys every open session (shutdown path).
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[int64]*domain.ShellSession)
}

// expandHome expands ~ to the configured home directory.
func (m *Manager) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(m.home, path[2:])
	}
	if path == "~" {
		return m.home
	}
	return path
}
