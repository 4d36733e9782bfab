// Package store persists bot state - subscriber set, admin config and
// alert memory - in a SQLCipher encrypted SQLite database so the list
// of chat ids never sits on disk in the clear.
package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const stateDBName = "state.db"

// Store implements domain.SubscriberStore, domain.AdminStore and
// domain.AlertStateStore on one encrypted database. Mutations are
// serialized; concurrent callers never interleave partial updates.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the encrypted state database in stateDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func Open(stateDir string, key []byte) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, stateDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to encrypted database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS subscribers (
		chat_id INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS admin_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alert_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_percent INTEGER,
		last_on_ac INTEGER,
		last_charge_state TEXT NOT NULL DEFAULT '',
		low_alert_active INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- domain.SubscriberStore ---

// Add subscribes a chat. Adding an existing subscriber is a no-op.
func (s *Store) Add(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO subscribers (chat_id) VALUES (?)`, chatID)
	return err
}

// Remove unsubscribes a chat. Removing an absent id is a no-op.
func (s *Store) Remove(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM subscribers WHERE chat_id = ?`, chatID)
	return err
}

// All returns every subscribed chat id.
func (s *Store) All() ([]int64, error) {
	rows, err := s.db.Query(`SELECT chat_id FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- domain.AdminStore ---

const (
	adminKeyChatID = "admin_chat_id"
	adminKeyShell  = "unsafe_shell_enabled"
)

// Load returns the persisted admin config. Missing keys read as the
// fail-closed zero values.
func (s *Store) Load() (domain.AdminConfig, error) {
	var cfg domain.AdminConfig

	if v, ok, err := s.getConfig(adminKeyChatID); err != nil {
		return cfg, err
	} else if ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("corrupt %s value %q: %w", adminKeyChatID, v, err)
		}
		cfg.AdminChatID = id
	}

	if v, ok, err := s.getConfig(adminKeyShell); err != nil {
		return cfg, err
	} else if ok {
		cfg.UnsafeShellEnabled = v == "1"
	}

	return cfg, nil
}

// SetAdmin persists the admin chat id.
func (s *Store) SetAdmin(chatID int64) error {
	return s.setConfig(adminKeyChatID, strconv.FormatInt(chatID, 10))
}

// SetShellEnabled persists the unsafe-shell flag.
func (s *Store) SetShellEnabled(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return s.setConfig(adminKeyShell, v)
}

func (s *Store) getConfig(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM admin_config WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) setConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO admin_config (key, value) VALUES (?, ?)`, key, value)
	return err
}

// --- domain.AlertStateStore ---

// LoadAlertState returns the persisted alert memory, zero-valued on
// first run.
func (s *Store) LoadAlertState() (domain.AlertState, error) {
	var state domain.AlertState
	var lastPercent, lastOnAC sql.NullInt64
	var lowActive int

	err := s.db.QueryRow(`
		SELECT last_percent, last_on_ac, last_charge_state, low_alert_active
		FROM alert_state WHERE id = 1`).
		Scan(&lastPercent, &lastOnAC, &state.LastChargeState, &lowActive)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return state, err
	}

	if lastPercent.Valid {
		p := int(lastPercent.Int64)
		state.LastPercent = &p
	}
	if lastOnAC.Valid {
		ac := lastOnAC.Int64 != 0
		state.LastOnAC = &ac
	}
	state.LowAlertActive = lowActive != 0
	return state, nil
}

// SaveAlertState replaces the persisted alert memory.
func (s *Store) SaveAlertState(state domain.AlertState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastPercent, lastOnAC sql.NullInt64
	if state.LastPercent != nil {
		lastPercent = sql.NullInt64{Int64: int64(*state.LastPercent), Valid: true}
	}
	if state.LastOnAC != nil {
		v := int64(0)
		if *state.LastOnAC {
			v = 1
		}
		lastOnAC = sql.NullInt64{Int64: v, Valid: true}
	}
	lowActive := 0
	if state.LowAlertActive {
		lowActive = 1
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO alert_state (id, last_percent, last_on_ac, last_charge_state, low_alert_active)
		VALUES (1, ?, ?, ?, ?)`,
		lastPercent, lastOnAC, state.LastChargeState, lowActive)
	return err
}

// Ensure Store implements the storage interfaces.
var (
	_ domain.SubscriberStore = (*Store)(nil)
	_ domain.AdminStore      = (*Store)(nil)
	_ domain.AlertStateStore = (*Store)(nil)
)
