package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"budgetbot/internal/backend"
	"budgetbot/internal/cli"
	apphttp "budgetbot/internal/http"
	blog "budgetbot/internal/log"
	"budgetbot/internal/refdata"
	"budgetbot/internal/report"
	"budgetbot/internal/services"
	"budgetbot/internal/telegram"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, "budgetbot")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store, closeStore, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open backend", blog.FieldError, err)
		os.Exit(1)
	}
	defer closeStore()

	ref, err := refdata.Load(ctx, store, blog.Component(logger, blog.ComponentSheets))
	if err != nil {
		logger.Error("Failed to load reference data", blog.FieldError, err)
		os.Exit(1)
	}

	var publisher services.EventPublisher
	if client := cli.NewAMQPClient(cfg, logger); client != nil {
		defer client.Close()
		publisher = client
	}

	svc := services.NewHouseholdService(store, ref, publisher, services.Options{
		AllowedIDs:        cfg.Household.AllowedIDs,
		AdminIDs:          cfg.Household.AdminIDs,
		Household:         cfg.HouseholdIDs(),
		RecentLimit:       cfg.RecentLimit(),
		RefreshPerRequest: cfg.Household.RefreshPerRequest,
		Location:          cfg.Location(),
	}, services.WithLogger(blog.Component(logger, blog.ComponentService)))
	render := report.New(cfg.Currency, cfg.Locale)

	srv := apphttp.NewServer(svc, render, logger, apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
		TrustedProxies:     cfg.TrustedProxies,
		Ready:              backend.Ready(store),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Telegram.Token != "" {
		api := cli.NewTelegramAPI(cfg, logger)
		sessions, closeSessions := cli.SessionStore(ctx, cfg, logger)
		defer closeSessions()

		bot := telegram.NewBot(api, svc, sessions, render, logger, cfg.RequestTimeout)
		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Telegram.Timeout
		updates := api.GetUpdatesChan(u)
		g.Go(func() error {
			bot.Consume(gctx, updates)
			api.StopReceivingUpdates()
			return nil
		})
	} else {
		logger.Info("Telegram bot disabled - no TELEGRAM_TOKEN provided")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Stopped with error", blog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Stopped gracefully")
}
