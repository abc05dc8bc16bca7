package ledger

import (
	"time"

	"budgetbot/internal/core"
)

// Entry is a decoded transaction together with its place in the ledger.
type Entry struct {
	core.Transaction
	// Position is the 0-based index among data rows (header excluded).
	Position int
}

// StoreRow is the 1-based store row holding this entry; the header is row 1.
func (e Entry) StoreRow() int {
	return e.Position + 2
}

// Blank reports whether the row carried no usable transaction.
func (e Entry) Blank() bool {
	return e.Category == "" && e.Amount == 0 && e.Person == ""
}

// Snapshot is one full read of the ledger.
type Snapshot struct {
	Entries []Entry
}

// NewSnapshot decodes rows as returned by a store scan. The first row is
// the header and is always skipped.
func NewSnapshot(rows [][]string, loc *time.Location) Snapshot {
	if len(rows) <= 1 {
		return Snapshot{}
	}
	data := rows[1:]
	s := Snapshot{Entries: make([]Entry, 0, len(data))}
	for i, r := range data {
		s.Entries = append(s.Entries, Entry{Transaction: Decode(r, loc), Position: i})
	}
	return s
}

// Month returns the entries recorded in month m, in ledger order.
func (s Snapshot) Month(m core.MonthKey) []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.Month == m {
			out = append(out, e)
		}
	}
	return out
}

// Len is the number of data rows, blank ones included.
func (s Snapshot) Len() int {
	return len(s.Entries)
}

// Without returns the snapshot as it looks after deleting the entry at
// position. Later entries shift up by one, like store rows do.
func (s Snapshot) Without(position int) Snapshot {
	if position < 0 || position >= len(s.Entries) {
		return s
	}
	out := Snapshot{Entries: make([]Entry, 0, len(s.Entries)-1)}
	for _, e := range s.Entries {
		switch {
		case e.Position == position:
			continue
		case e.Position > position:
			e.Position--
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}
