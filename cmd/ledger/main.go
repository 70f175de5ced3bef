package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/suspectuso/tariff-ledger/internal/catalog"
	"github.com/suspectuso/tariff-ledger/internal/config"
	"github.com/suspectuso/tariff-ledger/internal/ledger"
	"github.com/suspectuso/tariff-ledger/internal/notifier"
	"github.com/suspectuso/tariff-ledger/internal/server"
	"github.com/suspectuso/tariff-ledger/internal/storage"
	"github.com/suspectuso/tariff-ledger/internal/telegram"
	"github.com/suspectuso/tariff-ledger/internal/token"
)

func main() {
	// Setup logger
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	// Load config
	cfg := config.Load()

	accounts, err := cfg.ParseAccounts()
	if err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("storage initialized", "path", cfg.DBPath)

	// Initialize token
	var tok token.Token
	if cfg.TokenAPIURL != "" {
		tok = token.NewClient(cfg.TokenAPIURL, cfg.TokenAPIKey, accounts.Ledger)
		log.Info("token client initialized", "base_url", cfg.TokenAPIURL)
	} else {
		tok = token.NewMemory().Bind(accounts.Ledger)
		log.Warn("TOKEN_API_URL not set, using in-memory token")
	}

	cat := catalog.Default()

	// The bot needs the ledger, so the notifier gets its sender in Start
	notify := notifier.New(cat, cfg.OwnerChatID, cfg.NotifyQueueSize, log)

	l, err := ledger.New(cat, tok, store, ledger.Identity{
		Owner:          accounts.Owner,
		Self:           accounts.Ledger,
		Token:          accounts.Token,
		OwnerPublicKey: accounts.OwnerPublicKey,
	}, log, ledger.WithEventHandler(notify))
	if err != nil {
		log.Error("init ledger", "error", err)
		os.Exit(1)
	}
	log.Info("ledger initialized",
		"owner", accounts.Owner.ToRaw(),
		"address", accounts.Ledger.ToRaw(),
		"tariffs", cat.Len(),
	)

	// Initialize telegram bot
	var bot *telegram.Bot
	var sender notifier.Sender = logSender{log: log}
	if cfg.BotToken != "" {
		bot, err = telegram.New(cfg, l, log)
		if err != nil {
			log.Error("init telegram bot", "error", err)
			os.Exit(1)
		}
		sender = bot
		log.Info("telegram bot initialized")
	} else {
		log.Warn("BOT_TOKEN not set, telegram bot disabled")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go notify.Start(ctx, sender)
	go notifier.NewBalanceWatcher(l, log).Start(ctx, time.Minute)

	// Start http server
	httpServer := server.New(l, log)
	go func() {
		if err := httpServer.Start(ctx, cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Error("http server", "error", err)
			cancel()
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	if bot != nil {
		log.Info("starting bot polling...")
		bot.Start(ctx)
		return
	}

	<-ctx.Done()
}
