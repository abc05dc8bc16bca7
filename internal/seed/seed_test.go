package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbot/internal/core"
)

const sample = `
categories:
  - name: Rent
    limit: 2000
    owner: shared
  - name: Food
    limit: 1000
persons:
  - id: 10
    name: Олег
    limit: 5000
    contribution: 1700
    shares:
      Rent: 1200
      Food: 500
  - id: 20
    name: Марта
    limit: 4000
    shares:
      Rent: 800
transactions:
  - ["2025-03-01 10:00", "Олег", "Food", "100", "", "0", "202503"]
`

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, f.Transactions, 1)

	ref := f.Reference()
	require.Len(t, ref.Categories, 2)
	assert.Equal(t, "Rent", ref.Categories[0].Name, "order preserved")
	assert.Equal(t, core.OwnerShared, ref.Categories[0].Owner)

	name, ok := ref.NameOf(20)
	require.True(t, ok)
	assert.Equal(t, "Марта", name)
	assert.Equal(t, int64(800), ref.Contribution("Марта", "Rent"))
	assert.Equal(t, int64(1700), ref.ContributionTotals["Олег"])
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing name":   "categories:\n  - limit: 5\n",
		"negative limit": "categories:\n  - name: X\n    limit: -1\n",
		"duplicate":      "categories:\n  - name: X\n  - name: X\n",
		"person no id":   "persons:\n  - name: A\n",
		"bad yaml":       "categories: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Persons, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	ref := Default().Reference()
	assert.NotEmpty(t, ref.Categories)
	assert.Len(t, ref.Persons, 2)
}
