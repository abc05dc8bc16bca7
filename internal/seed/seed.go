// Package seed reads a household description from YAML. It feeds the
// memory backend and bootstraps an empty SQLite database.
package seed

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"budgetbot/internal/core"
)

// File is the on-disk layout of a seed file.
type File struct {
	Categories []CategorySeed `yaml:"categories" validate:"dive"`
	Persons    []PersonSeed   `yaml:"persons" validate:"dive"`
	// Transactions are optional raw ledger rows loaded after the header.
	Transactions [][]string `yaml:"transactions"`
}

type CategorySeed struct {
	Name  string `yaml:"name" validate:"required"`
	Limit int64  `yaml:"limit" validate:"gte=0"`
	Owner string `yaml:"owner"`
}

type PersonSeed struct {
	ID           int64            `yaml:"id" validate:"required"`
	Name         string           `yaml:"name" validate:"required"`
	Limit        int64            `yaml:"limit" validate:"gte=0"`
	Contribution int64            `yaml:"contribution" validate:"gte=0"`
	Shares       map[string]int64 `yaml:"shares"`
}

var validate = validator.New()

// Load reads and validates the seed file at path.
func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a seed document.
func Decode(r io.Reader) (File, error) {
	var out File
	if err := yaml.NewDecoder(r).Decode(&out); err != nil && err != io.EOF {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return File{}, fmt.Errorf("validate seed: %w", err)
	}
	seen := map[string]bool{}
	for _, c := range out.Categories {
		if seen[c.Name] {
			return File{}, fmt.Errorf("validate seed: duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	return out, nil
}

// Reference converts the seed into reference data.
func (f File) Reference() core.Reference {
	ref := core.Reference{
		Contributions:      map[string]map[string]int64{},
		ContributionTotals: map[string]int64{},
	}
	for _, c := range f.Categories {
		ref.Categories = append(ref.Categories, core.Category{Name: c.Name, Limit: c.Limit, Owner: c.Owner})
	}
	for _, p := range f.Persons {
		ref.Persons = append(ref.Persons, core.Person{Identity: p.ID, Name: p.Name, Limit: p.Limit})
		ref.ContributionTotals[p.Name] = p.Contribution
		shares := make(map[string]int64, len(p.Shares))
		for k, v := range p.Shares {
			shares[k] = v
		}
		ref.Contributions[p.Name] = shares
	}
	return ref
}

// Default is used when no seed file is configured.
func Default() File {
	return File{
		Categories: []CategorySeed{
			{Name: "Квартира", Limit: 20000, Owner: core.OwnerShared},
			{Name: "Їжа", Limit: 12000},
			{Name: "Коти", Limit: 2000},
			{Name: "Таксі", Limit: 1500},
			{Name: "Інше", Limit: 0},
		},
		Persons: []PersonSeed{
			{ID: 1, Name: "Person A", Limit: 15000, Contribution: 20000, Shares: map[string]int64{"Квартира": 12000}},
			{ID: 2, Name: "Person B", Limit: 12000, Contribution: 15000, Shares: map[string]int64{"Квартира": 8000}},
		},
	}
}
