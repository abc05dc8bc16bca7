package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ledger event kinds.
const (
	EventRecorded = "recorded"
	EventUndone   = "undone"
)

// LedgerEvent describes one ledger change together with the totals it
// produced, so consumers never have to read the ledger themselves.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Month     string    `json:"month"`
	Person    string    `json:"person"`
	Category  string    `json:"category"`
	Amount    int64     `json:"amount"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	CategorySpend   int64  `json:"category_spend"`
	CategoryLimit   int64  `json:"category_limit"`
	CategoryWarning string `json:"category_warning"`

	PersonSpend   int64  `json:"person_spend"`
	PersonLimit   int64  `json:"person_limit"`
	PersonWarning string `json:"person_warning"`

	// Household carries both persons' positions; a shared category moves
	// the non-paying person's spend too.
	Household []PersonLevel `json:"household,omitempty"`
}

// PersonLevel is one person's spend against their personal limit.
type PersonLevel struct {
	Name    string `json:"name"`
	Spend   int64  `json:"spend"`
	Limit   int64  `json:"limit"`
	Warning string `json:"warning"`
}

// NewLedgerEvent stamps an event with a fresh id and the current time.
func NewLedgerEvent(kind string) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
