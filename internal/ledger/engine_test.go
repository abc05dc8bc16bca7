package ledger

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbot/internal/core"
)

const month = core.MonthKey("202503")

var (
	pair    = Pair{A: "Олег", B: "Марта"}
	testRef = core.Reference{
		Categories: []core.Category{
			{Name: "Food", Limit: 1000},
			{Name: "Rent", Limit: 2000, Owner: core.OwnerShared},
			{Name: "Cats", Limit: 300, Owner: "Марта"},
			{Name: "Misc", Limit: 0},
		},
		Persons: []core.Person{
			{Identity: 1, Name: "Олег", Limit: 5000},
			{Identity: 2, Name: "Марта", Limit: 4000},
		},
		Contributions: map[string]map[string]int64{
			"Олег":  {"Rent": 1200, "Food": 500, "Savings": 300},
			"Марта": {"Rent": 800, "Food": 500},
		},
		ContributionTotals: map[string]int64{"Олег": 2000, "Марта": 1300},
	}
)

// builder accumulates ledger rows the way the record command writes them.
type builder struct {
	rows [][]string
	now  time.Time
}

func newBuilder() *builder {
	return &builder{
		rows: [][]string{Header},
		now:  time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func (b *builder) add(person, category string, amount int64) *builder {
	tx := core.NewTransaction(b.now, person, category, amount, "")
	if c, ok := testRef.Category(category); ok {
		if sh, ok := AttributeShares(testRef, pair, c, person, amount); ok {
			tx.Shares = &sh
		}
	}
	b.rows = append(b.rows, Encode(tx))
	b.now = b.now.Add(time.Minute)
	return b
}

func (b *builder) legacy(person, category string, amount int64, m core.MonthKey) *builder {
	b.rows = append(b.rows, []string{"2025-03-01 08:00", person, category, itoa(amount), "", "0", string(m)})
	return b
}

func (b *builder) snapshot() Snapshot {
	return NewSnapshot(b.rows, time.UTC)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestFoodApproaching(t *testing.T) {
	s := newBuilder().add("Олег", "Food", 850).snapshot()
	line := Line(s, month, core.Category{Name: "Food", Limit: 1000})

	assert.Equal(t, int64(150), line.Remaining)
	assert.Equal(t, 85, int(line.Percent))
	assert.Equal(t, core.WarningApproaching, line.Warning)
}

func TestFoodExceeded(t *testing.T) {
	s := newBuilder().add("Олег", "Food", 600).add("Марта", "Food", 500).snapshot()
	line := Line(s, month, core.Category{Name: "Food", Limit: 1000})

	assert.Equal(t, int64(1100), line.Spend)
	assert.Equal(t, int64(-100), line.Remaining)
	assert.Equal(t, core.WarningExceeded, line.Warning)
}

func TestSharedRentSplit(t *testing.T) {
	rent, _ := testRef.Category("Rent")
	sh, ok := AttributeShares(testRef, pair, rent, "Олег", 1000)
	require.True(t, ok)
	assert.Equal(t, core.Shares{A: 600, B: 400}, sh)
}

func TestAttributeShares(t *testing.T) {
	cases := []struct {
		name     string
		category core.Category
		payer    string
		amount   int64
		want     core.Shares
		ok       bool
	}{
		{"owned by B", core.Category{Name: "Cats", Limit: 300, Owner: "Марта"}, "Олег", 90, core.Shares{B: 90}, true},
		{"owned by A", core.Category{Name: "Gym", Limit: 300, Owner: "Олег"}, "Марта", 90, core.Shares{A: 90}, true},
		{"shared zero limit", core.Category{Name: "Rent", Limit: 0, Owner: core.OwnerShared}, "Олег", 90, core.Shares{}, true},
		{"shared remainder to A", core.Category{Name: "Rent", Limit: 2000, Owner: "Shared"}, "Марта", 7, core.Shares{A: 5, B: 2}, true},
		{"no owner payer A", core.Category{Name: "Food", Limit: 1000}, "Олег", 50, core.Shares{A: 50}, true},
		{"no owner payer B", core.Category{Name: "Food", Limit: 1000}, "Марта", 50, core.Shares{B: 50}, true},
		{"unknown owner falls back to payer", core.Category{Name: "Food", Limit: 1000, Owner: "Кіт"}, "Марта", 50, core.Shares{B: 50}, true},
		{"third party payer", core.Category{Name: "Food", Limit: 1000}, core.UnknownPerson, 50, core.Shares{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := AttributeShares(testRef, pair, tc.category, tc.payer, tc.amount)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWarningLevels(t *testing.T) {
	cases := []struct {
		spend, limit int64
		want         core.WarningLevel
	}{
		{0, 1000, core.WarningNone},
		{799, 1000, core.WarningNone},
		{800, 1000, core.WarningApproaching},
		{999, 1000, core.WarningApproaching},
		{1000, 1000, core.WarningExceeded},
		{5000, 1000, core.WarningExceeded},
		{5000, 0, core.WarningNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Warning(tc.spend, tc.limit), "%d/%d", tc.spend, tc.limit)
	}
}

func TestPersonSpendUsesShares(t *testing.T) {
	s := newBuilder().
		add("Олег", "Rent", 1000).
		add("Марта", "Food", 100).
		add("Олег", "Cats", 30).
		legacy("Олег", "Food", 70, month).
		legacy("Олег", "Food", 999, "202502").
		snapshot()

	assert.Equal(t, int64(670), PersonSpend(s, month, "Олег", pair))
	assert.Equal(t, int64(530), PersonSpend(s, month, "Марта", pair))
	assert.Equal(t, int64(0), PersonSpend(s, "202504", "Олег", pair))
}

func TestPersonSpendThirdParty(t *testing.T) {
	s := newBuilder().add(core.UnknownPerson, "Food", 40).add("Олег", "Food", 10).snapshot()
	assert.Equal(t, int64(40), PersonSpend(s, month, core.UnknownPerson, pair))
	assert.Equal(t, int64(10), PersonSpend(s, month, "Олег", pair))
}

func TestMonthlySummary(t *testing.T) {
	s := newBuilder().
		add("Олег", "Food", 850).
		add("Марта", "Misc", 40).
		legacy("Олег", "Food", 500, "202502").
		legacy("Олег", "Unknown", 77, month).
		snapshot()

	sum := MonthlySummary(s, month, testRef, pair)
	require.Len(t, sum.Lines, 3, "Misc has no limit and is not listed")
	assert.Equal(t, "Food", sum.Lines[0].Category)
	assert.Equal(t, "Rent", sum.Lines[1].Category)
	assert.Equal(t, "Cats", sum.Lines[2].Category)
	assert.Equal(t, int64(890), sum.TotalSpend, "untracked categories count, unknown ones do not")
	assert.Equal(t, int64(4073), sum.A.Remaining, "legacy rows count for the payer")
	assert.Equal(t, int64(3960), sum.B.Remaining)
}

func TestMonthlySummaryEmpty(t *testing.T) {
	sum := MonthlySummary(Snapshot{}, month, testRef, pair)
	assert.Zero(t, sum.TotalSpend)
	for _, l := range sum.Lines {
		assert.Zero(t, l.Spend)
		assert.Equal(t, core.WarningNone, l.Warning)
	}
	assert.Equal(t, core.WarningNone, sum.A.Warning)
}

func TestRecent(t *testing.T) {
	b := newBuilder()
	for i := int64(1); i <= 7; i++ {
		b.add("Олег", "Food", i)
	}
	b.rows = append(b.rows, []string{})
	got := Recent(b.snapshot(), 5)

	require.Len(t, got, 5)
	assert.Equal(t, int64(7), got[0].Amount)
	assert.Equal(t, int64(3), got[4].Amount)

	assert.Empty(t, Recent(Snapshot{}, 5))
	assert.Empty(t, Recent(b.snapshot(), 0))
}

func TestLastFor(t *testing.T) {
	s := newBuilder().
		add("Олег", "Food", 1).
		add("Марта", "Food", 2).
		add("Олег", "Food", 3).
		add("Марта", "Food", 4).
		snapshot()

	e, ok := LastFor(s, month, "Олег")
	require.True(t, ok)
	assert.Equal(t, int64(3), e.Amount)
	assert.Equal(t, 4, e.StoreRow())

	_, ok = LastFor(s, "202502", "Олег")
	assert.False(t, ok)
	_, ok = LastFor(Snapshot{}, month, "Олег")
	assert.False(t, ok)
}

func TestContributions(t *testing.T) {
	s := newBuilder().add("Олег", "Food", 100).snapshot()
	views := Contributions(s, month, testRef, pair)
	require.Len(t, views, 2)

	a := views[0]
	assert.Equal(t, "Олег", a.Name)
	assert.Equal(t, int64(2000), a.Total)
	assert.Equal(t, int64(4900), a.Balance)
	assert.Equal(t, []core.CategoryAmount{
		{Name: "Food", Amount: 500},
		{Name: "Rent", Amount: 1200},
		{Name: "Savings", Amount: 300},
	}, a.Category)

	assert.Equal(t, int64(4000), views[1].Balance)
}
