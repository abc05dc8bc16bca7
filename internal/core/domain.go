package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// OwnerShared marks a category whose costs are split between both persons.
	OwnerShared = "shared"

	// UnknownPerson is recorded when an allowed identity has no name in reference data.
	UnknownPerson = "Невідомий"

	// TimestampLayout is the minute-precision local time stored in the ledger.
	TimestampLayout = "2006-01-02 15:04"
)

type (
	// MonthKey identifies a calendar month as YYYYMM.
	MonthKey string

	Category struct {
		Name  string
		Limit int64 // 0 = untracked
		Owner string // OwnerShared, a person name, or empty
	}

	Person struct {
		Identity int64
		Name     string
		Limit    int64
	}

	// Shares is the attributed split of one transaction between person A and B.
	Shares struct {
		A int64
		B int64
	}

	Transaction struct {
		Timestamp time.Time
		Person    string
		Category  string
		Amount    int64
		Note      string
		Reserved  string
		Month     MonthKey
		Shares    *Shares // nil for rows written without attribution
	}

	// Reference holds the small mappings loaded from the backing store.
	Reference struct {
		Categories []Category // ordered as in the store
		Persons    []Person
		// Contributions maps person name -> category -> nominal monthly share.
		Contributions map[string]map[string]int64
		// ContributionTotals maps person name -> nominal monthly contribution.
		ContributionTotals map[string]int64
	}

	// Household identifies the two persons the budget is shared between.
	Household struct {
		AIdentity int64
		BIdentity int64
		AName     string // fallback when the identity has no name
		BName     string
	}
)

// MonthOf truncates t to its month key.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format("200601"))
}

func (m MonthKey) Validate() error {
	s := string(m)
	if len(s) != 6 {
		return fmt.Errorf("invalid month key %q", s)
	}
	if _, err := strconv.Atoi(s); err != nil {
		return fmt.Errorf("invalid month key %q", s)
	}
	mm, _ := strconv.Atoi(s[4:])
	if mm < 1 || mm > 12 {
		return fmt.Errorf("invalid month key %q", s)
	}
	return nil
}

func (s Shares) Sum() int64 {
	return s.A + s.B
}

// NewTransaction builds a transaction stamped at now with its derived month key.
func NewTransaction(now time.Time, person, category string, amount int64, note string) Transaction {
	ts := now.Truncate(time.Minute)
	return Transaction{
		Timestamp: ts,
		Person:    person,
		Category:  category,
		Amount:    amount,
		Note:      note,
		Reserved:  "0",
		Month:     MonthOf(ts),
	}
}

func (t Transaction) Validate() error {
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrUnknownCategory
	}
	if t.Month != MonthOf(t.Timestamp) {
		return fmt.Errorf("month key %s does not match timestamp %s", t.Month, t.Timestamp.Format(TimestampLayout))
	}
	if t.Shares != nil && t.Shares.Sum() != t.Amount && t.Shares.Sum() != 0 {
		return fmt.Errorf("shares %d+%d do not sum to amount %d", t.Shares.A, t.Shares.B, t.Amount)
	}
	return nil
}

// Category returns the named category.
func (r Reference) Category(name string) (Category, bool) {
	for _, c := range r.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// PersonByName returns the named person.
func (r Reference) PersonByName(name string) (Person, bool) {
	for _, p := range r.Persons {
		if p.Name == name {
			return p, true
		}
	}
	return Person{}, false
}

// NameOf resolves an external identity to a person name.
func (r Reference) NameOf(identity int64) (string, bool) {
	for _, p := range r.Persons {
		if p.Identity == identity && p.Name != "" {
			return p.Name, true
		}
	}
	return "", false
}

// PersonLimit returns the personal monthly limit, 0 when unknown.
func (r Reference) PersonLimit(name string) int64 {
	if p, ok := r.PersonByName(name); ok {
		return p.Limit
	}
	return 0
}

// Contribution returns the nominal share a person pays towards a category.
func (r Reference) Contribution(person, category string) int64 {
	if r.Contributions == nil {
		return 0
	}
	return r.Contributions[person][category]
}

// Clone returns a deep copy safe to hand out to readers.
func (r Reference) Clone() Reference {
	out := Reference{
		Categories: append([]Category(nil), r.Categories...),
		Persons:    append([]Person(nil), r.Persons...),
	}
	if r.Contributions != nil {
		out.Contributions = make(map[string]map[string]int64, len(r.Contributions))
		for person, cats := range r.Contributions {
			m := make(map[string]int64, len(cats))
			for k, v := range cats {
				m[k] = v
			}
			out.Contributions[person] = m
		}
	}
	if r.ContributionTotals != nil {
		out.ContributionTotals = make(map[string]int64, len(r.ContributionTotals))
		for k, v := range r.ContributionTotals {
			out.ContributionTotals[k] = v
		}
	}
	return out
}

// Names resolves both persons of the household against reference data.
func (h Household) Names(ref Reference) (a, b string) {
	a, ok := ref.NameOf(h.AIdentity)
	if !ok {
		a = h.AName
	}
	b, ok = ref.NameOf(h.BIdentity)
	if !ok {
		b = h.BName
	}
	return a, b
}
