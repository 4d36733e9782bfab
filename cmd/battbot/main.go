// Package main is the CLI entry point for battbot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/gregkorneev/alt-station/internal/authz"
	"github.com/gregkorneev/alt-station/internal/bot"
	"github.com/gregkorneev/alt-station/internal/config"
	"github.com/gregkorneev/alt-station/internal/daemon"
	"github.com/gregkorneev/alt-station/internal/domain"
	"github.com/gregkorneev/alt-station/internal/sensor"
	"github.com/gregkorneev/alt-station/internal/session"
	"github.com/gregkorneev/alt-station/internal/shell"
	"github.com/gregkorneev/alt-station/internal/store"
	"github.com/gregkorneev/alt-station/internal/transport"
)

var (
	// Version info (set via ldflags)
	Version   = "1.0.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "battbot",
	Short: "Telegram bot that watches your laptop's battery, temperature and fan",
	Long: `battbot polls the host's power supply and thermal sensors, alerts
subscribed Telegram chats when the battery crosses configured
thresholds or the power source changes, and gives the configured
admin a remote shell over chat.

The bot token is read from the BOT_TOKEN environment variable.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot (long-polling loop plus sensor monitor)",
	Long: `Runs the bot in the foreground until interrupted.
Starts the Telegram long-polling loop and the sensor monitor daemon;
both stop gracefully on SIGINT/SIGTERM.`,
	RunE: runBot,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	jsonOutput bool
)

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default ~/.battery_bot/config.toml)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if cfg.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN environment variable is not set")
	}

	if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	logger := createLogger(cfg.LogPath)
	defer func() { _ = logger.Sync() }()

	logger.Info("battbot starting",
		zap.String("version", Version),
		zap.String("state_dir", cfg.StateDir))

	// Encrypted state: subscribers, admin config, alert state.
	key, err := store.NewKeyProvider(cfg.StateDir).EnsureKey()
	if err != nil {
		return fmt.Errorf("state encryption key: %w", err)
	}
	st, err := store.Open(cfg.StateDir, key)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := seedAdmin(st, cfg, logger); err != nil {
		return err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}

	gate := authz.New(st, logger)
	sessions := session.NewManager(home)
	// One reader for both the dispatcher and the monitor, so the
	// sensors-broken latch covers the whole process.
	sensors := sensor.New(logger, cfg.Sensors.Disabled)
	dispatcher := bot.New(
		gate,
		st,
		sessions,
		shell.NewRunner(),
		sensors,
		bot.Limits{
			ExecTimeout:   time.Duration(cfg.Shell.ExecTimeoutSeconds) * time.Second,
			RunTimeout:    time.Duration(cfg.Shell.RunTimeoutSeconds) * time.Second,
			MaxReplyChars: cfg.Shell.MaxReplyChars,
		},
		cfg.Admin.ChatID,
		logger,
	)

	tg, err := transport.New(cfg.BotToken, logger)
	if err != nil {
		return err
	}

	monitorCfg := daemon.DefaultMonitorConfig()
	monitorCfg.PollInterval = time.Duration(cfg.Poll.IntervalSeconds) * time.Second
	monitorCfg.Thresholds = domain.Thresholds{
		Low:      cfg.Alerts.LowThreshold,
		Recovery: cfg.Alerts.RecoveryThreshold,
	}
	notifier := daemon.NewNotifier(daemon.DefaultNotifierConfig(), tg, logger)
	monitor := daemon.NewMonitor(monitorCfg, sensors, st, st, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return tg.Listen(gctx, dispatcher.HandleMessage) })

	err = g.Wait()
	sessions.CloseAll()
	logger.Info("battbot stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// seedAdmin writes the config-file admin defaults into the store on
// first run only. Once an admin is persisted, the stored values win
// over config and environment.
func seedAdmin(st *store.Store, cfg *config.Config, logger *zap.Logger) error {
	stored, err := st.Load()
	if err != nil {
		return fmt.Errorf("load admin config: %w", err)
	}
	if stored.AdminChatID != 0 || cfg.Admin.ChatID == 0 {
		return nil
	}

	if err := st.SetAdmin(cfg.Admin.ChatID); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if cfg.Admin.EnableUnsafeShell {
		if err := st.SetShellEnabled(true); err != nil {
			return fmt.Errorf("seed shell flag: %w", err)
		}
	}
	logger.Info("seeded admin from config",
		zap.Int64("admin_chat_id", cfg.Admin.ChatID),
		zap.Bool("unsafe_shell", cfg.Admin.EnableUnsafeShell))
	return nil
}

func createLogger(logPath string) *zap.Logger {
	_ = os.MkdirAll(filepath.Dir(logPath), 0700)

	config := zap.NewProductionConfig()
	config.OutputPaths = []string{logPath, "stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("battbot %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
