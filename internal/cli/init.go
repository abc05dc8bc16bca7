// Package cli provides common process bootstrap shared by cmd/budgetbot
// and cmd/budget-notifier.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"budgetbot/internal/amqp"
	"budgetbot/internal/config"
	"budgetbot/internal/conversation"
	blog "budgetbot/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig() *config.Config {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("Configuration validation failed", blog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// SetupLogger builds the process logger from cfg and sets it as default.
func SetupLogger(cfg *config.Config, process string) *slog.Logger {
	logger := blog.New(blog.Config{
		Level:  blog.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stdout,
	}).With("process", process)
	slog.SetDefault(logger)
	return logger
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// NewTelegramAPI connects to the Bot API or exits the process.
func NewTelegramAPI(cfg *config.Config, logger *slog.Logger) *tgbotapi.BotAPI {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Error("Failed to connect to Telegram", blog.FieldError, err)
		os.Exit(1)
	}
	api.Debug = cfg.Telegram.Debug
	logger.Info("Authorized on Telegram", "bot", api.Self.UserName)
	return api
}

// NewAMQPClient connects when AMQP_URL is set. A nil client means events
// are not published.
func NewAMQPClient(cfg *config.Config, logger *slog.Logger) *amqp.Client {
	if cfg.AMQP.URL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
	if err != nil {
		logger.Warn("AMQP unavailable, ledger events will not be published", blog.FieldError, err)
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQP.Exchange, "queue", cfg.AMQP.Queue)
	return client
}

// SessionStore returns a Redis-backed store when REDIS_URL is set and
// reachable, otherwise an in-memory one. The returned func releases it.
func SessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (conversation.Store, func()) {
	if cfg.RedisURL != "" {
		rs, err := conversation.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err == nil {
			err = rs.Ping(ctx)
		}
		if err == nil {
			logger.Info("Using Redis session store")
			return rs, func() { _ = rs.Close() }
		}
		if rs != nil {
			_ = rs.Close()
		}
		logger.Warn("Redis unavailable, keeping sessions in memory", blog.FieldError, err)
	}
	return conversation.NewMemoryStore(cfg.SessionTTL), func() {}
}
