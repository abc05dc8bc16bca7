// Package worker turns ledger events into Telegram limit alerts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"budgetbot/internal/amqp"
	"budgetbot/internal/core"
	blog "budgetbot/internal/log"
	"budgetbot/internal/report"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AlertWorker sends one alert per category or person each time its
// warning level rises within a month. Both persons are tracked, so a shared
// expense can alert for the one who did not pay.
type AlertWorker struct {
	api    Sender
	chats  []int64
	render *report.Renderer
	logger *slog.Logger

	mu sync.Mutex
	// seen holds the last level alerted per month and subject.
	seen map[string]core.WarningLevel
}

func NewAlertWorker(api Sender, chats []int64, render *report.Renderer, logger *slog.Logger) *AlertWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertWorker{
		api:    api,
		chats:  chats,
		render: render,
		logger: blog.Component(logger, blog.ComponentNotifier),
		seen:   make(map[string]core.WarningLevel),
	}
}

func parseLevel(s string) core.WarningLevel {
	switch s {
	case core.WarningApproaching.String():
		return core.WarningApproaching
	case core.WarningExceeded.String():
		return core.WarningExceeded
	}
	return core.WarningNone
}

// rise records level for key and reports whether it is higher than the
// last one, returning the previous level. Lower levels, after an undo, are
// remembered too so a later rise alerts again.
func (w *AlertWorker) rise(key string, level core.WarningLevel) (bool, core.WarningLevel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.seen[key]
	w.seen[key] = level
	return level > prev, prev
}

func (w *AlertWorker) restore(key string, level core.WarningLevel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[key] = level
}

// HandleLedgerEvent processes a single ledger event from AMQP.
func (w *AlertWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	logger := w.logger.With(blog.FieldEventKind, ev.Kind, blog.FieldMonth, ev.Month, blog.FieldCategory, ev.Category)

	type change struct {
		key  string
		prev core.WarningLevel
	}
	var (
		changes []change
		alerts  []string
	)
	track := func(key string, level core.WarningLevel, text func() string) {
		rose, prev := w.rise(key, level)
		changes = append(changes, change{key, prev})
		if rose && ev.Kind == amqp.EventRecorded {
			alerts = append(alerts, text())
		}
	}

	catLevel := parseLevel(ev.CategoryWarning)
	track("c|"+ev.Month+"|"+ev.Category, catLevel, func() string {
		return w.render.CategoryAlert(ev.Category, ev.CategorySpend, ev.CategoryLimit, catLevel)
	})
	for _, p := range personLevels(ev) {
		if p.Name == "" {
			continue
		}
		level := parseLevel(p.Warning)
		track("p|"+ev.Month+"|"+p.Name, level, func() string {
			return w.render.PersonAlert(p.Name, p.Spend, p.Limit, level)
		})
	}

	if ev.Kind != amqp.EventRecorded {
		logger.DebugContext(ctx, "Levels updated from non-record event")
		return nil
	}
	if len(alerts) == 0 {
		return nil
	}

	if err := w.broadcast(ctx, logger, alerts); err != nil {
		// Redelivery must alert again.
		for _, c := range changes {
			w.restore(c.key, c.prev)
		}
		return err
	}
	return nil
}

// personLevels returns both household positions, or the payer's alone for
// events published without them.
func personLevels(ev *amqp.LedgerEvent) []amqp.PersonLevel {
	if len(ev.Household) > 0 {
		return ev.Household
	}
	return []amqp.PersonLevel{{Name: ev.Person, Spend: ev.PersonSpend, Limit: ev.PersonLimit, Warning: ev.PersonWarning}}
}

// broadcast sends every alert to every chat. It fails only when no chat
// received anything, so a redelivery does not repeat alerts that landed.
func (w *AlertWorker) broadcast(ctx context.Context, logger *slog.Logger, alerts []string) error {
	if len(w.chats) == 0 {
		logger.WarnContext(ctx, "No notification chats configured, dropping alerts", "alerts", len(alerts))
		return nil
	}

	var errs []error
	delivered := 0
	for _, chat := range w.chats {
		for _, text := range alerts {
			if _, err := w.api.Send(tgbotapi.NewMessage(chat, text)); err != nil {
				logger.ErrorContext(ctx, "Failed to send alert", blog.FieldChatID, chat, blog.FieldError, err)
				errs = append(errs, fmt.Errorf("chat %d: %w", chat, err))
				continue
			}
			delivered++
		}
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	logger.InfoContext(ctx, "Alerts sent", "alerts", len(alerts), "chats", len(w.chats))
	return nil
}
