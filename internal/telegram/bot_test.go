package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbot/internal/conversation"
	"budgetbot/internal/core"
	"budgetbot/internal/refdata"
	"budgetbot/internal/report"
	"budgetbot/internal/services"
	"budgetbot/internal/sheets/memory"
)

const (
	userA    int64 = 11
	userB    int64 = 22
	stranger int64 = 99
	chat     int64 = 500
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// lastText returns the text of the most recent outgoing message or edit.
func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	switch c := f.sent[len(f.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return c.Text
	case tgbotapi.EditMessageTextConfig:
		return c.Text
	}
	t.Fatalf("unexpected chattable %T", f.sent[len(f.sent)-1])
	return ""
}

type harness struct {
	bot   *Bot
	api   *fakeSender
	store *memory.Store
}

func newHarness(t *testing.T, extra ...core.Category) *harness {
	t.Helper()
	ref := core.Reference{
		Categories: []core.Category{
			{Name: "Їжа", Limit: 1000},
			{Name: "Оренда", Limit: 2000, Owner: core.OwnerShared},
		},
		Persons: []core.Person{
			{Identity: userA, Name: "Олег", Limit: 5000},
			{Identity: userB, Name: "Марта", Limit: 4000},
		},
		Contributions:      map[string]map[string]int64{"Олег": {"Оренда": 1000}, "Марта": {"Оренда": 1000}},
		ContributionTotals: map[string]int64{"Олег": 1000, "Марта": 1000},
	}
	ref.Categories = append(ref.Categories, extra...)
	store := memory.New(ref)
	rs, err := refdata.Load(context.Background(), store, nil)
	require.NoError(t, err)
	clock := func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	svc := services.NewHouseholdService(store, rs, nil, services.Options{
		AllowedIDs: []int64{userA, userB},
		AdminIDs:   []int64{userA},
		Household:  core.Household{AIdentity: userA, BIdentity: userB},
		Location:   time.UTC,
	}, services.WithClock(clock))

	api := &fakeSender{}
	bot := NewBot(api, svc, conversation.NewMemoryStore(time.Hour), report.New("грн", "uk"), nil, time.Second)
	bot.now = clock
	return &harness{bot: bot, api: api, store: store}
}

// n formats a number the way replies do, so expectations do not depend
// on the locale's grouping rules.
func (h *harness) n(v int64) string {
	return h.bot.render.Number(v)
}

func (h *harness) text(from int64, text string) {
	h.bot.Handle(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: chat},
		Text: text,
	}})
}

func (h *harness) command(from int64, name, args string) {
	text := "/" + name
	if args != "" {
		text += " " + args
	}
	h.bot.Handle(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from},
		Chat:     &tgbotapi.Chat{ID: chat},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name) + 1}},
	}})
}

func (h *harness) callback(from int64, data string) {
	h.bot.Handle(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: chat}},
	}})
}

func TestStartShowsMenu(t *testing.T) {
	h := newHarness(t)
	h.command(userA, cmdStart, "")

	msg, ok := h.api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "Бюджет-бот готовий!", msg.Text)
	kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.Keyboard, 3)
	assert.Equal(t, "Баланс Олег / Марта", kb.Keyboard[1][0].Text)
}

func TestRecordFlow(t *testing.T) {
	h := newHarness(t)

	h.text(userA, report.MenuAdd)
	msg := h.api.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "Оберіть категорію:", msg.Text)
	inline := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, inline.InlineKeyboard, 3)
	assert.Equal(t, "cat:Їжа", *inline.InlineKeyboard[0][0].CallbackData)

	h.callback(userA, "cat:Їжа")
	assert.Equal(t, "Введіть суму для Їжа:", h.api.lastText(t))
	require.Len(t, h.api.requests, 1)

	h.text(userA, "abc")
	assert.Equal(t, "Тільки число!", h.api.lastText(t))
	h.text(userA, "0")
	assert.Equal(t, "Сума має бути > 0", h.api.lastText(t))

	h.text(userA, "850")
	assert.Equal(t, "Нотатка (або .):", h.api.lastText(t))

	h.text(userA, "хліб")
	assert.Equal(t, "850 грн – Їжа\nЗалишок: 150 (85%) 80%\nОлег: 850/"+h.n(5000), h.api.lastText(t))

	rows, _ := h.store.ScanAll(context.Background())
	require.Len(t, rows, 2)
	assert.Equal(t, "хліб", rows[1][4])
	assert.Equal(t, "500", rows[1][5])

	h.text(userA, "12")
	assert.Equal(t, "Оберіть дію з меню", h.api.lastText(t), "flow is over after commit")
}

func TestUnknownCategoryCallback(t *testing.T) {
	h := newHarness(t)
	h.text(userA, report.MenuAdd)
	h.callback(userA, "cat:Авто")

	cb := h.api.requests[0].(tgbotapi.CallbackConfig)
	assert.True(t, cb.ShowAlert)
	assert.Equal(t, "Категорія недоступна", cb.Text)
}

func TestLongCategoryNameUsesIndexCallback(t *testing.T) {
	long := strings.Repeat("Категорія", 4) // 72 bytes
	h := newHarness(t, core.Category{Name: long, Limit: 300})

	h.text(userA, report.MenuAdd)
	inline := h.api.sent[0].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, inline.InlineKeyboard, 4)
	for _, row := range inline.InlineKeyboard {
		assert.LessOrEqual(t, len(*row[0].CallbackData), maxCallbackData)
	}
	assert.Equal(t, long, inline.InlineKeyboard[2][0].Text)
	assert.Equal(t, "cati:2", *inline.InlineKeyboard[2][0].CallbackData)

	h.callback(userA, "cati:2")
	assert.Equal(t, "Введіть суму для "+long+":", h.api.lastText(t))
	h.text(userA, "100")
	h.text(userA, ".")

	rows, _ := h.store.ScanAll(context.Background())
	require.Len(t, rows, 2)
	assert.Equal(t, long, rows[1][2])
}

func TestCategoryFromCallback(t *testing.T) {
	cats := []core.Category{{Name: "Їжа"}, {Name: "Оренда"}}
	cases := []struct {
		data string
		name string
		ok   bool
	}{
		{"cat:Їжа", "Їжа", true},
		{"cat:Авто", "Авто", false},
		{"cati:1", "Оренда", true},
		{"cati:2", "", false},
		{"cati:-1", "", false},
		{"cati:x", "", false},
		{"other", "", false},
	}
	for _, tc := range cases {
		name, ok := categoryFromCallback(tc.data, cats)
		assert.Equal(t, tc.ok, ok, tc.data)
		if tc.ok {
			assert.Equal(t, tc.name, name, tc.data)
		}
	}
}

func TestBackCancelsFlow(t *testing.T) {
	h := newHarness(t)
	h.text(userA, report.MenuAdd)
	h.callback(userA, callbackBack)
	assert.Equal(t, "Скасовано", h.api.lastText(t))

	h.text(userA, "100")
	assert.Equal(t, "Оберіть дію з меню", h.api.lastText(t))
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(t)
	h.text(userA, report.MenuAdd)
	h.callback(userA, "cat:Їжа")
	h.command(userA, cmdCancel, "")
	assert.Equal(t, "Скасовано", h.api.lastText(t))

	h.text(userA, "100")
	rows, _ := h.store.ScanAll(context.Background())
	assert.Len(t, rows, 1, "nothing recorded after cancel")
}

func TestStrangerIsRefused(t *testing.T) {
	h := newHarness(t)
	h.text(stranger, report.MenuAdd)
	assert.Equal(t, "Доступ заборонено", h.api.lastText(t))
	h.text(stranger, report.MenuSummary)
	assert.Equal(t, "Доступ заборонено", h.api.lastText(t))
}

func TestMenuReadCommands(t *testing.T) {
	h := newHarness(t)
	h.text(userA, report.MenuRecent)
	assert.Equal(t, report.Empty, h.api.lastText(t))

	h.text(userA, report.MenuUndo)
	assert.Equal(t, "Немає транзакцій", h.api.lastText(t))

	h.text(userA, report.MenuBalance("Олег", "Марта"))
	assert.Contains(t, h.api.lastText(t), "Олег: 0/5")

	h.text(userA, report.MenuSummary)
	assert.Contains(t, h.api.lastText(t), "Разом витрачено: 0 грн")

	h.text(userA, report.MenuSettings)
	assert.Contains(t, h.api.lastText(t), "Ліміти категорій:")

	h.command(userB, cmdContrib, "")
	assert.Contains(t, h.api.lastText(t), "Внесок у бюджет:")
}

func TestUndoAfterRecord(t *testing.T) {
	h := newHarness(t)
	h.text(userB, report.MenuAdd)
	h.callback(userB, "cat:Оренда")
	h.text(userB, "1000")
	h.text(userB, ".")
	assert.Contains(t, h.api.lastText(t), "Марта: 500/"+h.n(4000))

	h.text(userB, report.MenuUndo)
	assert.Equal(t, "Видалено: Оренда – "+h.n(1000)+" грн", h.api.lastText(t))
	rows, _ := h.store.ScanAll(context.Background())
	assert.Len(t, rows, 1)
}

func TestSetLimitCommands(t *testing.T) {
	h := newHarness(t)

	h.command(userA, cmdSetCat, "Їжа 2500")
	assert.Equal(t, "Їжа → "+h.n(2500), h.api.lastText(t))

	h.command(userA, cmdSetCat, "Їжа")
	assert.Equal(t, "Формат: /setcat Їжа 25000", h.api.lastText(t))

	h.command(userA, cmdSetCat, "Їжа abc")
	assert.Equal(t, "Формат: /setcat Їжа 25000", h.api.lastText(t))

	h.command(userA, cmdSetCat, "Авто 10")
	assert.Equal(t, "Категорія не існує", h.api.lastText(t))

	h.command(userA, cmdSetPers, "Кіт 10")
	assert.Equal(t, "Невірне імʼя", h.api.lastText(t))

	h.command(userA, cmdSetPers, "Марта 100")
	assert.Equal(t, "Марта → 100", h.api.lastText(t))

	h.command(userB, cmdSetCat, "Їжа 1")
	assert.Equal(t, "Недостатньо прав", h.api.lastText(t))

	ref, _ := h.store.LoadReference(context.Background())
	c, _ := ref.Category("Їжа")
	assert.Equal(t, int64(2500), c.Limit)
	assert.Equal(t, int64(100), ref.PersonLimit("Марта"))
}

func TestConsumeStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	updates := make(chan tgbotapi.Update, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.bot.Consume(ctx, updates)
		close(done)
	}()

	updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userA},
		Chat: &tgbotapi.Chat{ID: chat},
		Text: report.MenuRecent,
	}}
	require.Eventually(t, func() bool {
		h.api.mu.Lock()
		defer h.api.mu.Unlock()
		return len(h.api.sent) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
