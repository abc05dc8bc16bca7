package report

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"budgetbot/internal/core"
)

func TestNumberGrouping(t *testing.T) {
	r := New("UAH", "en")
	assert.Equal(t, "12,345", r.Number(12345))
	assert.Equal(t, "850", r.Number(850))
}

func TestNewDefaults(t *testing.T) {
	r := New("", "not a locale!!")
	assert.Equal(t, "5 грн", r.money(5))
}

func TestRecorded(t *testing.T) {
	r := New("грн", "uk")
	res := core.RecordResult{
		Transaction: core.Transaction{Category: "Food", Amount: 850},
		Category:    core.CategoryLine{Category: "Food", Spend: 850, Limit: 1000, Remaining: 150, Percent: 85, Warning: core.WarningApproaching},
		Person:      core.PersonBalance{Name: "Олег", Spend: 850, Limit: 900, Remaining: 50, Percent: 94.4, Warning: core.WarningApproaching},
	}
	assert.Equal(t, "850 грн – Food\nЗалишок: 150 (85%) 80%\nОлег: 850/900 наближаєтесь", r.Recorded(res))

	res.Category = core.CategoryLine{Category: "Food", Spend: 10, Limit: 0}
	res.Person = core.PersonBalance{Name: "Олег", Spend: 10}
	assert.Equal(t, "850 грн – Food\nЗалишок: 0 (0%)\nОлег: 10/0", r.Recorded(res))
}

func TestRecordedStale(t *testing.T) {
	r := New("грн", "uk")
	out := r.Recorded(core.RecordResult{Transaction: core.Transaction{Category: "Rent", Amount: 10}, Stale: true})
	assert.Contains(t, out, "10 грн – Rent")
	assert.Contains(t, out, "недоступні")
}

func TestSummary(t *testing.T) {
	r := New("UAH", "en")
	s := core.MonthSummary{
		Lines: []core.CategoryLine{
			{Category: "Food", Spend: 1100, Limit: 1000, Remaining: -100, Percent: 110, Warning: core.WarningExceeded},
			{Category: "Rent", Spend: 0, Limit: 2000, Remaining: 2000},
		},
		TotalSpend: 1177,
		A:          core.PersonBalance{Name: "A", Spend: 600, Limit: 5000},
		B:          core.PersonBalance{Name: "B", Spend: 4000, Limit: 4000, Warning: core.WarningExceeded},
	}
	want := "Food: 1,100 / 1,000 (110%) 100%\n" +
		"Rent: 0 / 2,000 (0%)\n\n" +
		"Разом витрачено: 1,177 UAH\n" +
		"A: 600/5,000\n" +
		"B: 4,000/4,000 перевищення!"
	assert.Equal(t, want, r.Summary(s))
}

func TestSummaryWithoutLines(t *testing.T) {
	r := New("UAH", "en")
	out := r.Summary(core.MonthSummary{A: core.PersonBalance{Name: "A"}, B: core.PersonBalance{Name: "B"}})
	assert.Equal(t, "Разом витрачено: 0 UAH\nA: 0/0\nB: 0/0", out)
}

func TestBalance(t *testing.T) {
	r := New("UAH", "en")
	out := r.Balance([]core.PersonBalance{
		{Name: "A", Spend: 600, Limit: 5000, Remaining: 4400},
		{Name: "B", Spend: 450, Limit: 4000, Remaining: 3550},
	})
	assert.Equal(t, "A: 600/5,000 → 4,400 (залишок)\nB: 450/4,000 → 3,550 (залишок)", out)
}

func TestUndone(t *testing.T) {
	r := New("грн", "uk")
	assert.Equal(t, "Немає транзакцій", r.Undone(core.UndoResult{}))
	out := r.Undone(core.UndoResult{Deleted: true, Transaction: core.Transaction{Category: "Food", Amount: 42}})
	assert.Equal(t, "Видалено: Food – 42 грн", out)
}

func TestRecent(t *testing.T) {
	r := New("UAH", "en")
	assert.Equal(t, Empty, r.Recent(nil))

	ts := time.Date(2025, 3, 10, 18, 45, 0, 0, time.UTC)
	out := r.Recent([]core.Transaction{
		{Timestamp: ts, Person: "A", Category: "Food", Amount: 120, Note: "bread"},
		{Person: "B", Category: "Rent", Amount: 5},
	})
	assert.Equal(t, "2025-03-10 – Food – 120 – A – \"bread\"\n? – Rent – 5 – B – \"\"", out)
}

func TestContributionsAndSettings(t *testing.T) {
	r := New("UAH", "en")
	out := r.Contributions([]core.ContributionView{
		{Name: "A", Total: 1200, Balance: 4400, Category: []core.CategoryAmount{{Name: "Rent", Amount: 1200}}},
		{Name: "B", Total: 0, Balance: 10},
	})
	assert.Equal(t, "Внесок у бюджет:\nA: 1,200 UAH (баланс 4,400 UAH)\n - Rent: 1,200 UAH\nB: 0 UAH (баланс 10 UAH)", out)

	set := r.Settings(core.Settings{
		Categories: []core.Category{{Name: "Food", Limit: 1000}},
		A:          core.Person{Name: "A", Limit: 5},
		B:          core.Person{Name: "B", Limit: 7},
	})
	assert.Contains(t, set, "Food: 1,000")
	assert.Contains(t, set, "A: 5\nB: 7")

	assert.Equal(t, "Food → 25,000", r.LimitUpdated("Food", 25000))
}

func TestError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{core.ErrAccessDenied, "Доступ заборонено"},
		{core.ErrUnknownCategory, "Категорія не існує"},
		{core.ErrInvalidPersonName, "Невірне імʼя"},
		{core.ErrInvalidLimitTarget, "Невірний тип"},
		{core.ErrUnknownCaller, "Ти не в базі"},
		{fmt.Errorf("wrapped: %w", core.ErrInvalidAmount), "Сума має бути > 0"},
		{core.Unavailable("scan", errors.New("boom")), "Таблиця тимчасово недоступна, спробуйте пізніше"},
		{errors.New("other"), "Щось пішло не так"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Error(tc.err), tc.err.Error())
	}
}

func TestMenuBalance(t *testing.T) {
	assert.Equal(t, "Баланс A / B", MenuBalance("A", "B"))
}

func TestAlerts(t *testing.T) {
	r := New("грн", "uk")
	assert.Equal(t, "Категорія Їжа: 750/900 – наближаєтесь до ліміту",
		r.CategoryAlert("Їжа", 750, 900, core.WarningApproaching))
	assert.Equal(t, "Марта: 410/400 – ліміт перевищено!",
		r.PersonAlert("Марта", 410, 400, core.WarningExceeded))
}
