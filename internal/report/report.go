// Package report renders command results as chat-style text. Both the
// Telegram bot and the HTTP API return these strings.
package report

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"budgetbot/internal/core"
)

// Empty is returned for a recent listing with no transactions.
const Empty = "Пусто"

// Menu labels shared by the chat keyboard and its dispatcher.
const (
	MenuAdd      = "Додати витрату"
	MenuSummary  = "Підсумок за місяць"
	MenuUndo     = "Скасувати останню"
	MenuRecent   = "Останні транзакції"
	MenuSettings = "Налаштування"
)

// Renderer formats results with locale-aware digit grouping and a fixed
// currency label.
type Renderer struct {
	printer  *message.Printer
	currency string
}

// New creates a renderer. An unparsable locale falls back to Ukrainian.
func New(currency, locale string) *Renderer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Ukrainian
	}
	if currency == "" {
		currency = "грн"
	}
	return &Renderer{printer: message.NewPrinter(tag), currency: currency}
}

// Number formats v with the locale's grouping separator.
func (r *Renderer) Number(v int64) string {
	return r.printer.Sprintf("%d", v)
}

func (r *Renderer) money(v int64) string {
	return r.Number(v) + " " + r.currency
}

// MenuBalance is the balance button label for the two persons.
func MenuBalance(a, b string) string {
	return "Баланс " + a + " / " + b
}

func categoryMark(w core.WarningLevel) string {
	switch w {
	case core.WarningApproaching:
		return "80%"
	case core.WarningExceeded:
		return "100%"
	}
	return ""
}

func personMark(w core.WarningLevel) string {
	switch w {
	case core.WarningApproaching:
		return "наближаєтесь"
	case core.WarningExceeded:
		return "перевищення!"
	}
	return ""
}

// line joins parts with spaces and drops an empty trailing mark.
func line(parts ...string) string {
	return strings.TrimRight(strings.Join(parts, " "), " ")
}

// Recorded confirms an appended expense.
func (r *Renderer) Recorded(res core.RecordResult) string {
	var b strings.Builder
	b.WriteString(r.money(res.Transaction.Amount) + " – " + res.Transaction.Category)
	if res.Stale {
		b.WriteString("\nЗаписано, але підсумки зараз недоступні")
		return b.String()
	}
	c := res.Category
	b.WriteString("\n" + line("Залишок:", r.Number(c.Remaining), "("+r.Number(int64(c.Percent))+"%)", categoryMark(c.Warning)))
	p := res.Person
	b.WriteString("\n" + line(p.Name+":", r.Number(p.Spend)+"/"+r.Number(p.Limit), personMark(p.Warning)))
	return b.String()
}

// Summary renders the per-category table, the grand total and both
// persons' balances.
func (r *Renderer) Summary(s core.MonthSummary) string {
	rows := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		rows = append(rows, line(
			l.Category+":",
			r.Number(l.Spend), "/", r.Number(l.Limit),
			"("+r.Number(int64(l.Percent))+"%)",
			categoryMark(l.Warning)))
	}
	var b strings.Builder
	b.WriteString(strings.Join(rows, "\n"))
	b.WriteString("\n\nРазом витрачено: " + r.money(s.TotalSpend))
	for _, p := range []core.PersonBalance{s.A, s.B} {
		b.WriteString("\n" + line(p.Name+":", r.Number(p.Spend)+"/"+r.Number(p.Limit), personMark(p.Warning)))
	}
	return strings.TrimLeft(b.String(), "\n")
}

// Balance renders each person's spend, limit and what is left.
func (r *Renderer) Balance(balances []core.PersonBalance) string {
	rows := make([]string, 0, len(balances))
	for _, p := range balances {
		rows = append(rows, p.Name+": "+r.Number(p.Spend)+"/"+r.Number(p.Limit)+" → "+r.Number(p.Remaining)+" (залишок)")
	}
	return strings.Join(rows, "\n")
}

// Undone reports the result of an undo.
func (r *Renderer) Undone(res core.UndoResult) string {
	if !res.Deleted {
		return "Немає транзакцій"
	}
	tx := res.Transaction
	return "Видалено: " + tx.Category + " – " + r.money(tx.Amount)
}

// Recent renders one transaction per line, or Empty.
func (r *Renderer) Recent(txs []core.Transaction) string {
	if len(txs) == 0 {
		return Empty
	}
	rows := make([]string, len(txs))
	for i, tx := range txs {
		rows[i] = r.RecentLine(tx)
	}
	return strings.Join(rows, "\n")
}

// RecentLine formats date – category – amount – person – "note".
func (r *Renderer) RecentLine(tx core.Transaction) string {
	return strings.Join([]string{
		date(tx.Timestamp),
		tx.Category,
		r.Number(tx.Amount),
		tx.Person,
		`"` + tx.Note + `"`,
	}, " – ")
}

func date(t time.Time) string {
	if t.IsZero() {
		return "?"
	}
	return t.Format("2006-01-02")
}

// Contributions lists nominal contributions per person.
func (r *Renderer) Contributions(views []core.ContributionView) string {
	var b strings.Builder
	b.WriteString("Внесок у бюджет:")
	for _, v := range views {
		b.WriteString("\n" + v.Name + ": " + r.money(v.Total) + " (баланс " + r.money(v.Balance) + ")")
		for _, c := range v.Category {
			b.WriteString("\n - " + c.Name + ": " + r.money(c.Amount))
		}
	}
	return b.String()
}

// Settings shows the current limits and how to change them.
func (r *Renderer) Settings(s core.Settings) string {
	var b strings.Builder
	b.WriteString("Ліміти категорій:")
	for _, c := range s.Categories {
		b.WriteString("\n" + c.Name + ": " + r.Number(c.Limit))
	}
	b.WriteString("\n\nОсобисті ліміти:")
	for _, p := range []core.Person{s.A, s.B} {
		b.WriteString("\n" + p.Name + ": " + r.Number(p.Limit))
	}
	b.WriteString("\n\nЗмінити: /setcat Категорія 25000 або /setpers Імʼя 50000")
	return b.String()
}

// LimitUpdated confirms a limit change.
func (r *Renderer) LimitUpdated(name string, value int64) string {
	return name + " → " + r.Number(value)
}

// Error turns a command failure into user-facing text.
func Error(err error) string {
	switch {
	case errors.Is(err, core.ErrAccessDenied):
		return "Доступ заборонено"
	case errors.Is(err, core.ErrNotAuthorized):
		return "Недостатньо прав"
	case errors.Is(err, core.ErrUnknownCategory):
		return "Категорія не існує"
	case errors.Is(err, core.ErrUnknownCaller):
		return "Ти не в базі"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Сума має бути > 0"
	case errors.Is(err, core.ErrInvalidLimit):
		return "Ліміт має бути цілим числом ≥ 0"
	case errors.Is(err, core.ErrInvalidPersonName):
		return "Невірне імʼя"
	case errors.Is(err, core.ErrInvalidLimitTarget):
		return "Невірний тип"
	case core.KindOf(err) == core.KindUnavailable:
		return "Таблиця тимчасово недоступна, спробуйте пізніше"
	}
	return "Щось пішло не так"
}

// CategoryAlert warns that a category is near or over its limit.
func (r *Renderer) CategoryAlert(category string, spend, limit int64, w core.WarningLevel) string {
	return "Категорія " + category + ": " + r.Number(spend) + "/" + r.Number(limit) + " – " + alertTail(w)
}

// PersonAlert warns that a person is near or over their limit.
func (r *Renderer) PersonAlert(person string, spend, limit int64, w core.WarningLevel) string {
	return person + ": " + r.Number(spend) + "/" + r.Number(limit) + " – " + alertTail(w)
}

func alertTail(w core.WarningLevel) string {
	if w == core.WarningExceeded {
		return "ліміт перевищено!"
	}
	return "наближаєтесь до ліміту"
}
