// Package telegram is the chat front end: a reply-keyboard menu, an
// inline category picker and the admin limit commands.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"budgetbot/internal/conversation"
	"budgetbot/internal/core"
	blog "budgetbot/internal/log"
	"budgetbot/internal/report"
	"budgetbot/internal/services"
)

const (
	cmdStart   = "start"
	cmdCancel  = "cancel"
	cmdSetCat  = "setcat"
	cmdSetPers = "setpers"
	cmdContrib = "contrib"

	callbackCategory      = "cat:"
	callbackCategoryIndex = "cati:"
	callbackBack          = "back"
)

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Household is the command surface the bot drives.
type Household interface {
	Categories(ctx context.Context, caller int64) ([]core.Category, error)
	RecordExpense(ctx context.Context, caller int64, in services.Expense) (core.RecordResult, error)
	MonthSummary(ctx context.Context, caller int64) (core.MonthSummary, error)
	Balance(ctx context.Context, caller int64) ([]core.PersonBalance, error)
	UndoLast(ctx context.Context, caller int64) (core.UndoResult, error)
	Recent(ctx context.Context, caller int64) ([]core.Transaction, error)
	UpdateLimit(ctx context.Context, caller int64, target, name string, value int64) error
	Contributions(ctx context.Context, caller int64) ([]core.ContributionView, error)
	Settings(ctx context.Context, caller int64) (core.Settings, error)
	Household() (a, b string)
}

// Bot consumes updates and answers them one at a time.
type Bot struct {
	api      Sender
	svc      Household
	sessions conversation.Store
	render   *report.Renderer
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewBot(api Sender, svc Household, sessions conversation.Store, render *report.Renderer, logger *slog.Logger, timeout time.Duration) *Bot {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bot{
		api:      api,
		svc:      svc,
		sessions: sessions,
		render:   render,
		logger:   blog.Component(logger, blog.ComponentTelegram),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Consume handles updates until ctx is cancelled or the channel closes.
func (b *Bot) Consume(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	b.logger.Info("Telegram bot started consuming")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot stopped", "reason", ctx.Err())
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("Telegram updates channel closed")
				return
			}
			uctx, cancel := context.WithTimeout(ctx, b.timeout)
			b.Handle(uctx, update)
			cancel()
		}
	}
}

// Handle processes a single update.
func (b *Bot) Handle(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	caller, chatID := msg.From.ID, msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	a, bName := b.svc.Household()
	switch text {
	case report.MenuAdd:
		b.beginExpense(ctx, caller, chatID)
		return
	case report.MenuSummary:
		b.endFlow(ctx, chatID)
		res, err := b.svc.MonthSummary(ctx, caller)
		b.reply(ctx, chatID, err, func() string { return b.render.Summary(res) })
		return
	case report.MenuBalance(a, bName):
		b.endFlow(ctx, chatID)
		res, err := b.svc.Balance(ctx, caller)
		b.reply(ctx, chatID, err, func() string { return b.render.Balance(res) })
		return
	case report.MenuUndo:
		b.endFlow(ctx, chatID)
		res, err := b.svc.UndoLast(ctx, caller)
		b.reply(ctx, chatID, err, func() string { return b.render.Undone(res) })
		return
	case report.MenuRecent:
		b.endFlow(ctx, chatID)
		res, err := b.svc.Recent(ctx, caller)
		b.reply(ctx, chatID, err, func() string { return b.render.Recent(res) })
		return
	case report.MenuSettings:
		b.endFlow(ctx, chatID)
		res, err := b.svc.Settings(ctx, caller)
		b.reply(ctx, chatID, err, func() string { return b.render.Settings(res) })
		return
	}

	b.continueExpense(ctx, caller, chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	caller, chatID := msg.From.ID, msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case cmdStart:
		b.endFlow(ctx, chatID)
		b.sendMenu(chatID, "Бюджет-бот готовий!")
	case cmdCancel:
		b.endFlow(ctx, chatID)
		b.sendMenu(chatID, "Скасовано")
	case cmdSetCat:
		b.setLimit(ctx, caller, chatID, services.TargetCategory, args, "Формат: /setcat Їжа 25000")
	case cmdSetPers:
		b.setLimit(ctx, caller, chatID, services.TargetPerson, args, "Формат: /setpers Імʼя 50000")
	case cmdContrib:
		res, err := b.svc.Contributions(ctx, caller)
		b.reply(ctx, chatID, err, func() string { return b.render.Contributions(res) })
	default:
		b.logger.Debug("Unknown command", "command", msg.Command(), blog.FieldCaller, caller)
	}
}

func (b *Bot) setLimit(ctx context.Context, caller, chatID int64, target string, args []string, usage string) {
	if len(args) != 2 {
		b.send(chatID, usage)
		return
	}
	value, err := core.ParseLimit(args[1])
	if err != nil {
		b.send(chatID, usage)
		return
	}
	err = b.svc.UpdateLimit(ctx, caller, target, args[0], value)
	b.reply(ctx, chatID, err, func() string { return b.render.LimitUpdated(args[0], value) })
}

func (b *Bot) beginExpense(ctx context.Context, caller, chatID int64) {
	cats, err := b.svc.Categories(ctx, caller)
	if err != nil {
		b.reply(ctx, chatID, err, nil)
		return
	}
	if len(cats) == 0 {
		b.send(chatID, "Категорії не знайдено. Додай у таблицю.")
		return
	}
	sess, err := b.load(ctx, chatID)
	if err != nil {
		b.reply(ctx, chatID, err, nil)
		return
	}
	sess, err = sess.Fire(conversation.EventBegin, "", b.now())
	if err != nil {
		b.logger.Error("Unexpected transition", blog.FieldError, err)
		return
	}
	if err := b.sessions.Save(ctx, chatID, sess); err != nil {
		b.reply(ctx, chatID, err, nil)
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Оберіть категорію:")
	msg.ReplyMarkup = categoryKeyboard(cats)
	b.sendConfig(msg)
}

// continueExpense feeds free text into the active input flow.
func (b *Bot) continueExpense(ctx context.Context, caller, chatID int64, text string) {
	sess, err := b.load(ctx, chatID)
	if err != nil {
		b.reply(ctx, chatID, err, nil)
		return
	}
	ev, ok := sess.TextEvent()
	if !ok {
		b.sendMenu(chatID, "Оберіть дію з меню")
		return
	}
	next, err := sess.Fire(ev, text, b.now())
	switch {
	case errors.Is(err, conversation.ErrNotANumber):
		b.send(chatID, "Тільки число!")
		return
	case errors.Is(err, core.ErrInvalidAmount):
		b.send(chatID, "Сума має бути > 0")
		return
	case err != nil:
		b.logger.Error("Unexpected transition", blog.FieldError, err)
		return
	}

	if next.State != conversation.StateCommitted {
		if err := b.sessions.Save(ctx, chatID, next); err != nil {
			b.reply(ctx, chatID, err, nil)
			return
		}
		b.send(chatID, "Нотатка (або .):")
		return
	}

	b.endFlow(ctx, chatID)
	res, err := b.svc.RecordExpense(ctx, caller, services.Expense{
		Category: next.Category,
		Amount:   next.Amount,
		Note:     next.Note,
		ChatID:   chatID,
	})
	if err != nil {
		b.reply(ctx, chatID, err, nil)
		return
	}
	b.sendMenu(chatID, b.render.Recorded(res))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}
	chatID, messageID := cb.Message.Chat.ID, cb.Message.MessageID

	if cb.Data == callbackBack {
		b.endFlow(ctx, chatID)
		b.answer(tgbotapi.NewCallback(cb.ID, ""))
		b.sendConfig(tgbotapi.NewEditMessageText(chatID, messageID, "Скасовано"))
		return
	}
	if !strings.HasPrefix(cb.Data, callbackCategory) && !strings.HasPrefix(cb.Data, callbackCategoryIndex) {
		b.answer(tgbotapi.NewCallback(cb.ID, ""))
		return
	}

	cats, err := b.svc.Categories(ctx, cb.From.ID)
	if err != nil {
		b.answer(tgbotapi.NewCallbackWithAlert(cb.ID, report.Error(err)))
		return
	}
	name, ok := categoryFromCallback(cb.Data, cats)
	if !ok {
		b.answer(tgbotapi.NewCallbackWithAlert(cb.ID, "Категорія недоступна"))
		return
	}
	sess, err := b.load(ctx, chatID)
	if err != nil {
		b.answer(tgbotapi.NewCallbackWithAlert(cb.ID, report.Error(err)))
		return
	}
	next, err := sess.Fire(conversation.EventChooseCategory, name, b.now())
	if err != nil {
		// Stale keyboard from an earlier flow.
		b.answer(tgbotapi.NewCallbackWithAlert(cb.ID, "Почніть спочатку: "+report.MenuAdd))
		return
	}
	if err := b.sessions.Save(ctx, chatID, next); err != nil {
		b.answer(tgbotapi.NewCallbackWithAlert(cb.ID, report.Error(err)))
		return
	}
	b.sendConfig(tgbotapi.NewEditMessageText(chatID, messageID, "Введіть суму для "+name+":"))
	b.answer(tgbotapi.NewCallback(cb.ID, ""))
}

func (b *Bot) load(ctx context.Context, chatID int64) (conversation.Session, error) {
	sess, err := b.sessions.Load(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to load session", blog.FieldChatID, chatID, blog.FieldError, err)
		return conversation.Session{}, core.Unavailable("load session", err)
	}
	return sess, nil
}

func (b *Bot) endFlow(ctx context.Context, chatID int64) {
	if err := b.sessions.Delete(ctx, chatID); err != nil {
		b.logger.Warn("Failed to clear session", blog.FieldChatID, chatID, blog.FieldError, err)
	}
}

// reply sends either the rendered result or the error text.
func (b *Bot) reply(ctx context.Context, chatID int64, err error, render func() string) {
	if err != nil {
		b.logger.WarnContext(ctx, "Command failed", blog.FieldChatID, chatID, blog.FieldError, err)
		b.send(chatID, report.Error(err))
		return
	}
	b.sendMenu(chatID, render())
}

func (b *Bot) send(chatID int64, text string) {
	b.sendConfig(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	a, bName := b.svc.Household()
	msg.ReplyMarkup = mainMenu(a, bName)
	b.sendConfig(msg)
}

func (b *Bot) sendConfig(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("Telegram bot couldn't send message", blog.FieldError, err)
	}
}

func (b *Bot) answer(c tgbotapi.CallbackConfig) {
	if _, err := b.api.Request(c); err != nil {
		b.logger.Error("Telegram bot couldn't answer callback", blog.FieldError, err)
	}
}

func knownCategory(cats []core.Category, name string) bool {
	for _, c := range cats {
		if c.Name == name {
			return true
		}
	}
	return false
}
