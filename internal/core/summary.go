package core

// WarningLevel classifies spend against a limit.
type WarningLevel int

const (
	WarningNone WarningLevel = iota
	WarningApproaching
	WarningExceeded
)

func (w WarningLevel) String() string {
	switch w {
	case WarningApproaching:
		return "APPROACHING"
	case WarningExceeded:
		return "EXCEEDED"
	default:
		return "NONE"
	}
}

// CategoryLine is one row of the monthly summary.
type CategoryLine struct {
	Category  string
	Spend     int64
	Limit     int64
	Remaining int64
	Percent   float64
	Warning   WarningLevel
}

// PersonBalance is one person's position for the month.
type PersonBalance struct {
	Name      string
	Spend     int64
	Limit     int64
	Remaining int64
	Percent   float64
	Warning   WarningLevel
}

// MonthSummary is the aggregated view of a month.
type MonthSummary struct {
	Month      MonthKey
	Lines      []CategoryLine
	TotalSpend int64
	A          PersonBalance
	B          PersonBalance
}

// RecordResult is returned after an expense is appended.
type RecordResult struct {
	Transaction Transaction
	Category    CategoryLine
	Person      PersonBalance
	// Stale is set when the row was written but totals could not be re-read.
	Stale bool
}

// UndoResult reports what undo removed; Deleted is false when nothing matched.
type UndoResult struct {
	Deleted     bool
	Transaction Transaction
}

// ContributionView lists one person's nominal contributions.
type ContributionView struct {
	Name     string
	Total    int64
	Balance  int64
	Category []CategoryAmount
}

// CategoryAmount represents an amount attached to a category name.
type CategoryAmount struct {
	Name   string
	Amount int64
}

// Settings is the editable reference data shown to users.
type Settings struct {
	Categories []Category
	A          Person
	B          Person
}
