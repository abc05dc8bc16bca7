package ledger

import (
	"maps"
	"math/big"
	"slices"
	"strings"

	"budgetbot/internal/core"
)

const (
	approachingPercent = 80
	exceededPercent    = 100
)

// Pair names the two persons the household budget is split between.
type Pair struct {
	A string
	B string
}

// CategorySpend sums the amounts of category's transactions in month.
func CategorySpend(s Snapshot, month core.MonthKey, category string) int64 {
	var total int64
	for _, e := range s.Entries {
		if e.Month == month && e.Category == category {
			total += e.Amount
		}
	}
	return total
}

// PersonSpend sums what person spent in month. Attributed rows contribute
// the person's share; rows without shares count in full for the payer.
func PersonSpend(s Snapshot, month core.MonthKey, person string, pair Pair) int64 {
	var total int64
	for _, e := range s.Entries {
		if e.Month != month {
			continue
		}
		if e.Shares == nil {
			if e.Person == person {
				total += e.Amount
			}
			continue
		}
		switch person {
		case pair.A:
			total += e.Shares.A
		case pair.B:
			total += e.Shares.B
		}
	}
	return total
}

// AttributeShares splits amount recorded by payer in category between the
// pair. ok is false when no attribution applies and the row should be
// counted by payer name only.
//
// A category owned by one person goes fully to that person. A shared
// category is split by the nominal contributions in ref:
//
//	shareB = amount * contribution(B) / limit   (truncated)
//	shareA = amount - shareB
//
// so the rounding remainder always lands on A. A shared category with a
// zero limit yields (0, 0). Without an owner the payer carries the amount.
func AttributeShares(ref core.Reference, pair Pair, category core.Category, payer string, amount int64) (shares core.Shares, ok bool) {
	owner := strings.TrimSpace(category.Owner)
	switch {
	case strings.EqualFold(owner, core.OwnerShared):
		if category.Limit <= 0 {
			return core.Shares{}, true
		}
		refB := clamp(ref.Contribution(pair.B, category.Name), 0, category.Limit)
		q := new(big.Int).Mul(big.NewInt(amount), big.NewInt(refB))
		q.Quo(q, big.NewInt(category.Limit))
		b := clamp(q.Int64(), 0, amount)
		return core.Shares{A: amount - b, B: b}, true
	case owner != "" && owner == pair.A:
		return core.Shares{A: amount}, true
	case owner != "" && owner == pair.B:
		return core.Shares{B: amount}, true
	}
	switch payer {
	case pair.A:
		return core.Shares{A: amount}, true
	case pair.B:
		return core.Shares{B: amount}, true
	}
	return core.Shares{}, false
}

// Percent is spend as a percentage of limit, 0 for an untracked limit.
func Percent(spend, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(spend) / float64(limit) * 100
}

// Warning classifies spend against limit.
func Warning(spend, limit int64) core.WarningLevel {
	if limit <= 0 {
		return core.WarningNone
	}
	p := Percent(spend, limit)
	switch {
	case p >= exceededPercent:
		return core.WarningExceeded
	case p >= approachingPercent:
		return core.WarningApproaching
	default:
		return core.WarningNone
	}
}

// Line computes the summary line of one category.
func Line(s Snapshot, month core.MonthKey, category core.Category) core.CategoryLine {
	spend := CategorySpend(s, month, category.Name)
	return core.CategoryLine{
		Category:  category.Name,
		Spend:     spend,
		Limit:     category.Limit,
		Remaining: category.Limit - spend,
		Percent:   Percent(spend, category.Limit),
		Warning:   Warning(spend, category.Limit),
	}
}

// Balance computes one person's position for month.
func Balance(s Snapshot, month core.MonthKey, ref core.Reference, pair Pair, person string) core.PersonBalance {
	spend := PersonSpend(s, month, person, pair)
	limit := ref.PersonLimit(person)
	return core.PersonBalance{
		Name:      person,
		Spend:     spend,
		Limit:     limit,
		Remaining: limit - spend,
		Percent:   Percent(spend, limit),
		Warning:   Warning(spend, limit),
	}
}

// Balances returns the positions of both persons of the pair.
func Balances(s Snapshot, month core.MonthKey, ref core.Reference, pair Pair) (a, b core.PersonBalance) {
	return Balance(s, month, ref, pair, pair.A), Balance(s, month, ref, pair, pair.B)
}

// MonthlySummary lists every tracked category (limit > 0) in reference
// order. TotalSpend covers all known categories, untracked ones included.
func MonthlySummary(s Snapshot, month core.MonthKey, ref core.Reference, pair Pair) core.MonthSummary {
	sum := core.MonthSummary{Month: month}
	for _, c := range ref.Categories {
		line := Line(s, month, c)
		sum.TotalSpend += line.Spend
		if c.Limit > 0 {
			sum.Lines = append(sum.Lines, line)
		}
	}
	sum.A, sum.B = Balances(s, month, ref, pair)
	return sum
}

// Recent returns up to n non-blank entries, most recent first.
func Recent(s Snapshot, n int) []Entry {
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, n)
	for i := len(s.Entries) - 1; i >= 0 && len(out) < n; i-- {
		if s.Entries[i].Blank() {
			continue
		}
		out = append(out, s.Entries[i])
	}
	return out
}

// LastFor finds the most recent entry of person in month, scanning from
// the end of the ledger.
func LastFor(s Snapshot, month core.MonthKey, person string) (Entry, bool) {
	for i := len(s.Entries) - 1; i >= 0; i-- {
		e := s.Entries[i]
		if e.Person == person && e.Month == month {
			return e, true
		}
	}
	return Entry{}, false
}

// Contributions lists each person's nominal contribution with their
// current balance against their personal limit.
func Contributions(s Snapshot, month core.MonthKey, ref core.Reference, pair Pair) []core.ContributionView {
	views := make([]core.ContributionView, 0, 2)
	for _, name := range []string{pair.A, pair.B} {
		bal := Balance(s, month, ref, pair, name)
		v := core.ContributionView{
			Name:    name,
			Total:   ref.ContributionTotals[name],
			Balance: bal.Remaining,
		}
		seen := make(map[string]bool, len(ref.Categories))
		for _, c := range ref.Categories {
			seen[c.Name] = true
			if amt := ref.Contribution(name, c.Name); amt > 0 {
				v.Category = append(v.Category, core.CategoryAmount{Name: c.Name, Amount: amt})
			}
		}
		// Contribution columns that are not budget categories, e.g. savings.
		for _, cat := range slices.Sorted(maps.Keys(ref.Contributions[name])) {
			if amt := ref.Contributions[name][cat]; !seen[cat] && amt > 0 {
				v.Category = append(v.Category, core.CategoryAmount{Name: cat, Amount: amt})
			}
		}
		views = append(views, v)
	}
	return views
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
