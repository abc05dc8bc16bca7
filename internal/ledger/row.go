// Package ledger turns raw ledger rows into month aggregates.
//
// Everything here is pure: functions take a Snapshot read from the ledger
// store plus reference data and never return errors. Missing or malformed
// data degrades to zero spend and no warning.
package ledger

import (
	"math"
	"strconv"
	"strings"
	"time"

	"budgetbot/internal/core"
)

// Column positions of a ledger row.
const (
	colTimestamp = iota
	colPerson
	colCategory
	colAmount
	colNote
	colReserved
	colMonth
	colShareA
	colShareB

	rowWidth
)

// Header is the first row of a freshly created ledger.
var Header = []string{"Timestamp", "Person", "Category", "Amount", "Note", "Reserved", "Month", "ShareA", "ShareB"}

// Encode renders a transaction as a ledger row. Share columns are only
// present when the transaction carries an attribution.
func Encode(tx core.Transaction) []string {
	reserved := tx.Reserved
	if reserved == "" {
		reserved = "0"
	}
	row := []string{
		tx.Timestamp.Format(core.TimestampLayout),
		tx.Person,
		tx.Category,
		strconv.FormatInt(tx.Amount, 10),
		tx.Note,
		reserved,
		string(tx.Month),
	}
	if tx.Shares != nil {
		row = append(row,
			strconv.FormatInt(tx.Shares.A, 10),
			strconv.FormatInt(tx.Shares.B, 10),
		)
	}
	return row
}

// Decode parses one raw row. Short rows and unparsable cells decode to
// zero values.
func Decode(row []string, loc *time.Location) core.Transaction {
	if loc == nil {
		loc = time.Local
	}
	tx := core.Transaction{
		Person:   cell(row, colPerson),
		Category: cell(row, colCategory),
		Amount:   safeInt(cell(row, colAmount)),
		Note:     cell(row, colNote),
		Reserved: cell(row, colReserved),
		Month:    core.MonthKey(cell(row, colMonth)),
	}
	if ts, err := time.ParseInLocation(core.TimestampLayout, cell(row, colTimestamp), loc); err == nil {
		tx.Timestamp = ts
	} else if d, err := time.ParseInLocation("2006-01-02", dateOf(cell(row, colTimestamp)), loc); err == nil {
		tx.Timestamp = d
	}
	if tx.Month == "" && !tx.Timestamp.IsZero() {
		tx.Month = core.MonthOf(tx.Timestamp)
	}
	a, b := cell(row, colShareA), cell(row, colShareB)
	if a != "" || b != "" {
		tx.Shares = &core.Shares{A: safeInt(a), B: safeInt(b)}
	}
	return tx
}

// dateOf returns the date part of a "YYYY-MM-DD HH:MM" cell.
func dateOf(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func safeInt(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Sheets may hand back "1200.0" for numeric cells.
		f, ferr := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if ferr != nil || math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0
		}
		return int64(f)
	}
	return v
}
