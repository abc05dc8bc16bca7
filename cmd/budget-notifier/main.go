package main

import (
	"context"
	"errors"
	"os"

	"budgetbot/internal/amqp"
	"budgetbot/internal/cli"
	blog "budgetbot/internal/log"
	"budgetbot/internal/report"
	"budgetbot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, "budget-notifier")

	if cfg.AMQP.URL == "" || cfg.Telegram.Token == "" {
		logger.Error("budget-notifier needs AMQP_URL and TELEGRAM_TOKEN")
		os.Exit(1)
	}
	if len(cfg.NotifyChatIDs) == 0 {
		logger.Warn("NOTIFY_CHAT_IDS is empty, alerts will be dropped")
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", blog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	api := cli.NewTelegramAPI(cfg, logger)
	alerts := worker.NewAlertWorker(api, cfg.NotifyChatIDs, report.New(cfg.Currency, cfg.Locale), logger)

	logger.Info("Starting budget-notifier", "queue", cfg.AMQP.Queue, "chats", len(cfg.NotifyChatIDs))
	if err := client.ConsumeLedgerEvents(ctx, alerts.HandleLedgerEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", blog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("budget-notifier stopped gracefully")
}
