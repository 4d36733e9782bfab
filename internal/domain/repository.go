package domain

import "context"

// SensorReader queries the host battery, AC and thermal sources.
// Read never fails as a whole: unavailable sources are recorded in
// Reading.SourceErrors and the rest of the snapshot is returned.
type SensorReader interface {
	Read(ctx context.Context) Reading
}

// SubscriberStore persists the set of chats receiving push
// notifications. Add and Remove are idempotent.
// Implementation: encrypted SQLite database.
type SubscriberStore interface {
	Add(chatID int64) error
	Remove(chatID int64) error
	All() ([]int64, error)
}

// AdminStore persists the admin identity and the unsafe-shell flag.
type AdminStore interface {
	Load() (AdminConfig, error)
	SetAdmin(chatID int64) error
	SetShellEnabled(on bool) error
}

// AlertStateStore persists the alerting memory so a restart does not
// re-fire notifications that were already sent.
type AlertStateStore interface {
	LoadAlertState() (AlertState, error)
	SaveAlertState(state AlertState) error
}

// Transport delivers a plain-text message to a chat.
// Implementation: Telegram Bot API.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// CommandRunner executes host commands with a working directory and
// a context-bound deadline. A deadline hit is reported through
// ExecResult.TimedOut, not as an error.
type CommandRunner interface {
	// RunShell executes command via the shell in dir.
	RunShell(ctx context.Context, dir, command string) (ExecResult, error)

	// RunArgv executes an argument vector directly, without a shell.
	RunArgv(ctx context.Context, argv []string) (ExecResult, error)
}
