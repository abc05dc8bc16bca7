package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbot/internal/core"
)

func TestCellString(t *testing.T) {
	assert.Equal(t, "1200000", cellString(float64(1200000)))
	assert.Equal(t, "12.5", cellString(12.5))
	assert.Equal(t, "abc", cellString(" abc "))
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "true", cellString(true))
}

func TestToCells(t *testing.T) {
	got := toCells([]string{"2025-03-01 10:00", "Олег", "Food", "850", "", "0", "202503", "007"})
	assert.Equal(t, []any{"2025-03-01 10:00", "Олег", "Food", int64(850), "", int64(0), int64(202503), "007"}, got)
}

func TestParseCategories(t *testing.T) {
	values := [][]any{
		{"Name", "Limit", "Owner"},
		{"Rent", float64(2000), "shared"},
		{"Food", "1000"},
		{"", float64(5)},
		{"Rent", float64(1)},
		{"Misc"},
	}
	got := parseCategories(values)
	assert.Equal(t, []core.Category{
		{Name: "Rent", Limit: 2000, Owner: "shared"},
		{Name: "Food", Limit: 1000},
		{Name: "Misc"},
	}, got)
}

func TestParsePersons(t *testing.T) {
	values := [][]any{
		{"TID", "Name", "Limit"},
		{float64(350174070), "Олег", float64(15000)},
		{"x", "Марта", "12000"},
		{},
	}
	got := parsePersons(values)
	require.Len(t, got, 2)
	assert.Equal(t, int64(350174070), got[0].Identity)
	assert.Equal(t, int64(0), got[1].Identity)
	assert.Equal(t, int64(12000), got[1].Limit)
}

func TestParseContributions(t *testing.T) {
	values := [][]any{
		{"Name", "Total", "Rent", "Food", "Savings"},
		{"Олег", float64(2000), float64(1200), float64(500), float64(300)},
		{"Марта", "1300", "800", "500"},
		{""},
	}
	byCat, totals := parseContributions(values)
	assert.Equal(t, int64(2000), totals["Олег"])
	assert.Equal(t, int64(800), byCat["Марта"]["Rent"])
	assert.Equal(t, int64(0), byCat["Марта"]["Savings"])
	assert.Len(t, byCat, 2)

	byCat, totals = parseContributions(nil)
	assert.Empty(t, byCat)
	assert.Empty(t, totals)
}

func TestSafeInt(t *testing.T) {
	cases := map[string]int64{
		"":       0,
		"42":     42,
		"1200.0": 1200,
		"12,5":   12,
		"abc":    0,
		"1e30":   0,
		"NaN":    0,
		"Inf":    0,
		"-Inf":   0,
	}
	for in, want := range cases {
		assert.Equal(t, want, safeInt(in), in)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"Name"}, {"Rent"}, {}, {"Food"}}
	assert.Equal(t, 4, findRow(values, "Food"))
	assert.Equal(t, 0, findRow(values, "Nope"))
}

func TestDecodeToken(t *testing.T) {
	tok, err := decodeToken([]byte(`{"access_token":"a","refresh_token":"r"}`))
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)

	_, err = decodeToken([]byte(`{}`))
	assert.Error(t, err)
	_, err = decodeToken([]byte(`nope`))
	assert.Error(t, err)
}
