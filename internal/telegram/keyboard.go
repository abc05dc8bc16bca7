package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"budgetbot/internal/core"
	"budgetbot/internal/report"
)

// mainMenu is the six-action reply keyboard.
func mainMenu(a, b string) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(report.MenuAdd),
			tgbotapi.NewKeyboardButton(report.MenuSummary),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(report.MenuBalance(a, b)),
			tgbotapi.NewKeyboardButton(report.MenuUndo),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(report.MenuRecent),
			tgbotapi.NewKeyboardButton(report.MenuSettings),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// maxCallbackData is Telegram's limit on callback_data, in bytes.
const maxCallbackData = 64

// categoryKeyboard lists one category per row plus a back button. Names
// too long for callback data are sent as their position in cats.
func categoryKeyboard(cats []core.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(cats)+1)
	for i, c := range cats {
		data := callbackCategory + c.Name
		if len(data) > maxCallbackData {
			data = callbackCategoryIndex + strconv.Itoa(i)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Name, data),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Назад", callbackBack),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// categoryFromCallback resolves callback data produced by categoryKeyboard
// against the caller's current categories.
func categoryFromCallback(data string, cats []core.Category) (string, bool) {
	if name, ok := strings.CutPrefix(data, callbackCategory); ok {
		return name, knownCategory(cats, name)
	}
	if idx, ok := strings.CutPrefix(data, callbackCategoryIndex); ok {
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 || i >= len(cats) {
			return "", false
		}
		return cats[i].Name, true
	}
	return "", false
}
