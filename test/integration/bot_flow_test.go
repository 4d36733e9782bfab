//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/gregkorneev/alt-station/internal/authz"
	"github.com/gregkorneev/alt-station/internal/bot"
	"github.com/gregkorneev/alt-station/internal/domain"
	"github.com/gregkorneev/alt-station/internal/session"
	"github.com/gregkorneev/alt-station/internal/shell"
	"github.com/gregkorneev/alt-station/internal/store"
)

// stubReader avoids touching real power-supply and hwmon paths.
type stubReader struct{ reading domain.Reading }

func (s *stubReader) Read(ctx context.Context) domain.Reading { return s.reading }

var _ = Describe("Bot end to end", func() {
	var (
		tmpDir     string
		st         *store.Store
		dispatcher *bot.Dispatcher
		ctx        context.Context
	)

	const (
		adminChat    int64 = 100
		strangerChat int64 = 200
	)

	newDispatcher := func(s *store.Store) *bot.Dispatcher {
		logger := zap.NewNop()
		percent := 42
		return bot.New(
			authz.New(s, logger),
			s,
			session.NewManager(tmpDir),
			shell.NewRunner(),
			&stubReader{reading: domain.Reading{BatteryPercent: &percent, ChargeState: "discharging"}},
			bot.Limits{ExecTimeout: 10 * time.Second, RunTimeout: 10 * time.Second, MaxReplyChars: 3800},
			0,
			logger,
		)
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "battbot-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := store.NewKeyProvider(tmpDir).EnsureKey()
		Expect(err).NotTo(HaveOccurred())

		st, err = store.Open(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())

		dispatcher = newDispatcher(st)
		ctx = context.Background()
	})

	AfterEach(func() {
		st.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("admin bootstrap", func() {
		Context("when no admin is configured", func() {
			It("should let the first claimant become admin and lock out the rest", func() {
				reply := dispatcher.HandleMessage(ctx, adminChat, "/setadmin 100")
				Expect(reply).To(ContainSubstring("OK. ADMIN_CHAT_ID теперь 100"))

				reply = dispatcher.HandleMessage(ctx, strangerChat, "/setadmin 200")
				Expect(reply).To(Equal("Недостаточно прав для /setadmin."))

				cfg, err := st.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.AdminChatID).To(Equal(adminChat))
			})
		})
	})

	Describe("shell session", func() {
		BeforeEach(func() {
			Expect(dispatcher.HandleMessage(ctx, adminChat, "/setadmin 100")).To(ContainSubstring("OK"))
			Expect(dispatcher.HandleMessage(ctx, adminChat, "/enable_shell")).To(Equal("Интерактивная консоль: ВКЛ."))
		})

		Context("for the admin", func() {
			It("should execute commands in the session directory", func() {
				reply := dispatcher.HandleMessage(ctx, adminChat, "/linux")
				Expect(reply).To(ContainSubstring("Интерактивная консоль открыта"))

				sub := filepath.Join(tmpDir, "work")
				Expect(os.Mkdir(sub, 0o755)).To(Succeed())

				reply = dispatcher.HandleMessage(ctx, adminChat, "/cd work")
				Expect(reply).To(Equal("OK: " + sub))

				reply = dispatcher.HandleMessage(ctx, adminChat, "pwd")
				Expect(reply).To(ContainSubstring(sub))
				Expect(reply).To(ContainSubstring("(exit 0)"))

				reply = dispatcher.HandleMessage(ctx, adminChat, "/exit")
				Expect(reply).To(Equal("Консоль закрыта."))
			})
		})

		Context("for anyone else", func() {
			It("should answer with the generic rejection", func() {
				reply := dispatcher.HandleMessage(ctx, strangerChat, "/linux")
				Expect(reply).To(Equal("Команда недоступна."))
			})
		})

		Context("when the admin loses shell access mid-session", func() {
			It("should close the session instead of executing", func() {
				dispatcher.HandleMessage(ctx, adminChat, "/linux")
				Expect(dispatcher.HandleMessage(ctx, adminChat, "/disable_shell")).To(Equal("Интерактивная консоль: ВЫКЛ."))

				reply := dispatcher.HandleMessage(ctx, adminChat, "ls")
				Expect(reply).To(Equal("Сеанс закрыт: недостаточно прав."))
			})
		})
	})

	Describe("state persistence", func() {
		It("should keep subscribers and admin across a store reopen", func() {
			dispatcher.HandleMessage(ctx, adminChat, "/setadmin 100")
			dispatcher.HandleMessage(ctx, strangerChat, "/subscribe")

			key, err := store.NewKeyProvider(tmpDir).GetKey()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Close()).To(Succeed())

			st, err = store.Open(tmpDir, key)
			Expect(err).NotTo(HaveOccurred())
			dispatcher = newDispatcher(st)

			ids, err := st.All()
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(ConsistOf(strangerChat))

			reply := dispatcher.HandleMessage(ctx, strangerChat, "/setadmin 200")
			Expect(reply).To(Equal("Недостаточно прав для /setadmin."))
		})
	})

	Describe("safe command allow-list", func() {
		It("should run an aliased command without a shell", func() {
			reply := dispatcher.HandleMessage(ctx, strangerChat, "/run uptime")
			Expect(reply).To(ContainSubstring("$ uptime"))
			Expect(reply).To(ContainSubstring("(exit 0)"))
		})

		It("should reject an unknown alias with the list of valid ones", func() {
			reply := dispatcher.HandleMessage(ctx, strangerChat, "/run rm")
			Expect(reply).To(ContainSubstring("Неизвестный алиас"))
			Expect(reply).To(ContainSubstring("uptime"))
		})
	})
})
