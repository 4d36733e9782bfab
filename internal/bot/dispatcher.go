// Package bot routes inbound chat messages: built-in commands,
// privileged admin commands gated by authz, and free text into an
// open shell session. One reply string per message; an empty reply
// means nothing is sent.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/gregkorneev/alt-station/internal/alert"
	"github.com/gregkorneev/alt-station/internal/authz"
	"github.com/gregkorneev/alt-station/internal/domain"
	"github.com/gregkorneev/alt-station/internal/session"
)

// Replies whose wording is security-relevant: the privileged
// rejection text must not reveal whether the identity or the feature
// flag failed.
const (
	replyUnavailable  = "Команда недоступна."
	replyNoPrivileges = "Недостаточно прав."
	replyNoConsole    = "Консоль не открыта. Используйте /linux."
	truncationMarker  = "\n…[обрезано]"
)

// Limits bounds command execution and reply size.
type Limits struct {
	ExecTimeout   time.Duration // /exec and session commands
	RunTimeout    time.Duration // /run allow-list commands
	MaxReplyChars int
}

// Dispatcher handles one inbound (chat, text) pair at a time per
// chat. Cross-chat state lives behind the injected stores.
type Dispatcher struct {
	gate       *authz.Gate
	subs       domain.SubscriberStore
	sessions   *session.Manager
	runner     domain.CommandRunner
	sensors    domain.SensorReader
	limits     Limits
	envAdminID int64 // startup default, reported by /adminstatus
	logger     *zap.Logger
}

// New creates a dispatcher.
func New(
	gate *authz.Gate,
	subs domain.SubscriberStore,
	sessions *session.Manager,
	runner domain.CommandRunner,
	sensors domain.SensorReader,
	limits Limits,
	envAdminID int64,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		gate:       gate,
		subs:       subs,
		sessions:   sessions,
		runner:     runner,
		sensors:    sensors,
		limits:     limits,
		envAdminID: envAdminID,
		logger:     logger,
	}
}

var knownCommands = map[string]bool{
	"/start": true, "/whoami": true, "/battery": true,
	"/subscribe": true, "/unsubscribe": true, "/run": true,
	"/adminstatus": true, "/setadmin": true,
	"/enable_shell": true, "/disable_shell": true,
	"/exec": true, "/linux": true,
	"/pwd": true, "/cd": true, "/exit": true,
}

// HandleMessage processes one inbound message and returns the reply.
func (d *Dispatcher) HandleMessage(ctx context.Context, chatID int64, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	cmd, args, rest := splitCommand(text)

	// An open session swallows everything that is not a recognized
	// command: the whole message is a shell command in the session's
	// working directory.
	if _, open := d.sessions.Get(chatID); open && !knownCommands[cmd] {
		return d.handleSessionText(ctx, chatID, text)
	}

	switch cmd {
	case "/start":
		return startHelp
	case "/whoami":
		return fmt.Sprintf("Ваш chat_id: %d", chatID)
	case "/battery":
		return alert.StatusText(d.sensors.Read(ctx))
	case "/subscribe":
		return d.handleSubscribe(chatID)
	case "/unsubscribe":
		return d.handleUnsubscribe(chatID)
	case "/run":
		return d.handleRun(ctx, args)
	case "/adminstatus":
		return d.handleAdminStatus(chatID)
	case "/setadmin":
		return d.handleSetAdmin(chatID, args)
	case "/enable_shell":
		return d.handleShellFlag(chatID, true)
	case "/disable_shell":
		return d.handleShellFlag(chatID, false)
	case "/exec":
		return d.handleExec(ctx, chatID, rest)
	case "/linux":
		return d.handleLinux(chatID)
	case "/pwd":
		return d.handlePwd(chatID)
	case "/cd":
		return d.handleCd(chatID, rest)
	case "/exit":
		return d.handleExit(chatID)
	}

	if strings.HasPrefix(text, "/") {
		return "Неизвестная команда. Список: /start"
	}
	// Plain text outside a session is not ours to answer.
	return ""
}

const startHelp = "Я слежу за батареей, температурой и кулером вашего ноутбука.\n" +
	"Доступные команды:\n" +
	"/battery — показать текущее состояние\n" +
	"/subscribe — подписаться на уведомления\n" +
	"/unsubscribe — отписаться от уведомлений\n" +
	"/run help — список безопасных команд\n" +
	"/whoami — узнать свой chat_id\n" +
	"Админские: /linux, /exec, /adminstatus, /setadmin, /enable_shell, /disable_shell"

// splitCommand returns the lowercase command token (with any @botname
// suffix stripped), the argument fields, and the raw remainder.
func splitCommand(text string) (cmd string, args []string, rest string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, text
	}
	cmd = strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args = fields[1:]
	rest = strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	return cmd, args, rest
}

func (d *Dispatcher) handleSubscribe(chatID int64) string {
	if err := d.subs.Add(chatID); err != nil {
		d.logger.Error("subscribe failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return "Не удалось сохранить подписку, попробуйте позже."
	}
	return "Подписал. Теперь вы будете получать уведомления о батарее."
}

func (d *Dispatcher) handleUnsubscribe(chatID int64) string {
	if err := d.subs.Remove(chatID); err != nil {
		d.logger.Error("unsubscribe failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return "Не удалось сохранить изменение, попробуйте позже."
	}
	return "Больше не будете получать уведомления."
}

func (d *Dispatcher) handleRun(ctx context.Context, args []string) string {
	aliases := strings.Join(safeAliases(), " ")

	if len(args) == 0 {
		return "Использование: /run <алиас>\nДоступные: " + aliases + "\nПодсказка: /run help"
	}
	if args[0] == "help" {
		var b strings.Builder
		b.WriteString("Белый список:\n")
		for _, alias := range safeAliases() {
			fmt.Fprintf(&b, "%s → %s\n", alias, strings.Join(safeCommands[alias].Argv, " "))
		}
		return strings.TrimRight(b.String(), "\n")
	}

	sc, ok := safeCommands[args[0]]
	if !ok {
		return "Неизвестный алиас. Доступные: " + aliases
	}

	runCtx, cancel := context.WithTimeout(ctx, d.limits.RunTimeout)
	defer cancel()

	res, err := d.runner.RunArgv(runCtx, sc.Argv)
	if err != nil {
		return fmt.Sprintf("Не удалось выполнить: %v", err)
	}
	if res.TimedOut {
		return fmt.Sprintf("✋ Команда превысила лимит времени (%d с).", int(d.limits.RunTimeout.Seconds()))
	}

	out := headLines(res.Output, sc.MaxLines)
	reply := fmt.Sprintf("$ %s\n\n%s\n(exit %d)", strings.Join(sc.Argv, " "), out, res.ExitCode)
	return d.truncate(reply)
}

func (d *Dispatcher) handleAdminStatus(chatID int64) string {
	cfg, err := d.gate.Status()
	if err != nil {
		d.logger.Error("admin status unavailable", zap.Error(err))
		return "Не удалось прочитать настройки."
	}
	return fmt.Sprintf(
		"ADMIN_CHAT_ID (env): %d\nADMIN_CHAT_ID (effective): %d\nenable_shell flag (effective): %t\nВаш chat_id: %d",
		d.envAdminID, cfg.AdminChatID, cfg.UnsafeShellEnabled, chatID)
}

func (d *Dispatcher) handleSetAdmin(chatID int64, args []string) string {
	if len(args) == 0 {
		return "Использование: /setadmin <chat_id>"
	}
	newAdmin, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Использование: /setadmin <chat_id>"
	}

	if err := d.gate.SetAdmin(chatID, newAdmin); err != nil {
		return "Недостаточно прав для /setadmin."
	}
	d.logger.Info("admin changed", zap.Int64("by", chatID), zap.Int64("admin_chat_id", newAdmin))
	return fmt.Sprintf("OK. ADMIN_CHAT_ID теперь %d", newAdmin)
}

func (d *Dispatcher) handleShellFlag(chatID int64, on bool) string {
	if err := d.gate.SetShellEnabled(chatID, on); err != nil {
		return replyNoPrivileges
	}
	d.logger.Info("unsafe shell flag changed", zap.Int64("by", chatID), zap.Bool("enabled", on))
	if on {
		return "Интерактивная консоль: ВКЛ."
	}
	return "Интерактивная консоль: ВЫКЛ."
}

func (d *Dispatcher) handleExec(ctx context.Context, chatID int64, raw string) string {
	if !d.gate.ShellAllowed(chatID) {
		return replyUnavailable
	}
	if raw == "" {
		return "Использование: /exec <команда>"
	}

	runCtx, cancel := context.WithTimeout(ctx, d.limits.ExecTimeout)
	defer cancel()

	res, err := d.runner.RunShell(runCtx, "", raw)
	if err != nil {
		return fmt.Sprintf("Не удалось выполнить: %v", err)
	}
	if res.TimedOut {
		return fmt.Sprintf("✋ Команда превысила лимит времени (%d с).", int(d.limits.ExecTimeout.Seconds()))
	}
	return d.truncate(fmt.Sprintf("$ %s\n\n%s\n(exit %d)", raw, res.Output, res.ExitCode))
}

func (d *Dispatcher) handleLinux(chatID int64) string {
	if !d.gate.ShellAllowed(chatID) {
		return replyUnavailable
	}
	if _, err := d.sessions.Open(chatID); err != nil {
		return "Консоль уже открыта.\nИспользуйте /exit для выхода."
	}
	d.logger.Info("shell session opened", zap.Int64("chat_id", chatID))
	return "🔐 Интерактивная консоль открыта.\n" +
		"Отправляйте команды, чтобы выполнить их.\n" +
		"Команды:\n" +
		"• /cd <путь> — смена каталога\n" +
		"• /pwd — показать текущий каталог\n" +
		"• /exit — закрыть консоль"
}

func (d *Dispatcher) handlePwd(chatID int64) string {
	cwd, err := d.sessions.Pwd(chatID)
	if err != nil {
		return replyNoConsole
	}
	return cwd
}

func (d *Dispatcher) handleCd(chatID int64, target string) string {
	cwd, err := d.sessions.Cd(chatID, target)
	switch {
	case err == nil && strings.TrimSpace(target) == "":
		return fmt.Sprintf("cd ~ → %s", cwd)
	case err == nil:
		return fmt.Sprintf("OK: %s", cwd)
	case errors.Is(err, session.ErrNotOpen):
		return replyNoConsole
	default:
		return "Нет такого каталога."
	}
}

func (d *Dispatcher) handleExit(chatID int64) string {
	if d.sessions.Close(chatID) {
		d.logger.Info("shell session closed", zap.Int64("chat_id", chatID))
		return "Консоль закрыта."
	}
	return replyNoConsole
}

// handleSessionText executes free text inside an open session.
// Authorization is re-checked on every message: a session whose chat
// lost shell access is closed, not served.
func (d *Dispatcher) handleSessionText(ctx context.Context, chatID int64, raw string) string {
	if !d.gate.ShellAllowed(chatID) {
		d.sessions.Close(chatID)
		d.logger.Info("shell session revoked", zap.Int64("chat_id", chatID))
		return "Сеанс закрыт: недостаточно прав."
	}

	raw = stripCodeFence(raw)
	if raw == "" {
		return ""
	}

	cwd, err := d.sessions.Pwd(chatID)
	if err != nil {
		return replyNoConsole
	}

	runCtx, cancel := context.WithTimeout(ctx, d.limits.ExecTimeout)
	defer cancel()

	res, err := d.runner.RunShell(runCtx, cwd, raw)
	if err != nil {
		return fmt.Sprintf("Не удалось выполнить: %v", err)
	}
	if res.TimedOut {
		return fmt.Sprintf("✋ Команда превысила лимит времени (%d с).", int(d.limits.ExecTimeout.Seconds()))
	}

	return d.truncate(fmt.Sprintf("%s$ %s\n\n%s\n(exit %d)", cwd, raw, res.Output, res.ExitCode))
}

// stripCodeFence unwraps a message pasted as a ``` code block.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		s = strings.Trim(s, "`")
		s = strings.TrimSpace(s)
	}
	return s
}

// truncate bounds a reply, marking the cut explicitly. The cut must
// land on a rune boundary: most replies are Cyrillic, and Telegram
// rejects messages that are not valid UTF-8.
func (d *Dispatcher) truncate(s string) string {
	if d.limits.MaxReplyChars <= 0 || len(s) <= d.limits.MaxReplyChars {
		return s
	}
	cut := d.limits.MaxReplyChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
