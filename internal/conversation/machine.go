// Package conversation holds the multi-step expense input flow:
// category, then amount, then note, then commit. The flow is a small
// state machine driven by one transition table.
package conversation

import (
	"errors"
	"fmt"
	"time"

	"budgetbot/internal/core"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingCategory
	StateAwaitingAmount
	StateAwaitingNote
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCategory:
		return "awaiting_category"
	case StateAwaitingAmount:
		return "awaiting_amount"
	case StateAwaitingNote:
		return "awaiting_note"
	case StateCommitted:
		return "committed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Event int

const (
	EventBegin Event = iota + 1
	EventChooseCategory
	EventEnterAmount
	EventEnterNote
	EventCancel
)

func (e Event) String() string {
	switch e {
	case EventBegin:
		return "begin"
	case EventChooseCategory:
		return "choose_category"
	case EventEnterAmount:
		return "enter_amount"
	case EventEnterNote:
		return "enter_note"
	case EventCancel:
		return "cancel"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// transitions lists every allowed move. Cancel is accepted from any
// state and is handled separately.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventBegin: StateAwaitingCategory,
	},
	StateAwaitingCategory: {
		EventBegin:          StateAwaitingCategory,
		EventChooseCategory: StateAwaitingAmount,
	},
	StateAwaitingAmount: {
		EventBegin:       StateAwaitingCategory,
		EventEnterAmount: StateAwaitingNote,
	},
	StateAwaitingNote: {
		EventBegin:     StateAwaitingCategory,
		EventEnterNote: StateCommitted,
	},
	StateCommitted: {
		EventBegin: StateAwaitingCategory,
	},
}

var (
	// ErrInvalidTransition is returned when an event does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotANumber rejects amount input that is not made of digits.
	ErrNotANumber = errors.New("amount is not a number")
)

// Session is the per-chat input collected so far.
type Session struct {
	State     State     `json:"state"`
	Category  string    `json:"category,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Note      string    `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fire applies ev with its text argument. On error the session is
// returned unchanged.
func (s Session) Fire(ev Event, arg string, now time.Time) (Session, error) {
	if ev == EventCancel {
		return Session{State: StateIdle, UpdatedAt: now}, nil
	}
	next, ok := transitions[s.State][ev]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s.State)
	}

	out := s
	switch ev {
	case EventBegin:
		out = Session{}
	case EventChooseCategory:
		out.Category = arg
	case EventEnterAmount:
		amount, err := parseAmount(arg)
		if err != nil {
			return s, err
		}
		out.Amount = amount
	case EventEnterNote:
		out.Note = core.NormalizeNote(arg)
	}
	out.State = next
	out.UpdatedAt = now
	return out, nil
}

// TextEvent reports which event a free-text message triggers in the
// current state.
func (s Session) TextEvent() (Event, bool) {
	switch s.State {
	case StateAwaitingAmount:
		return EventEnterAmount, true
	case StateAwaitingNote:
		return EventEnterNote, true
	}
	return 0, false
}

// Active reports whether the session is mid-flow.
func (s Session) Active() bool {
	return s.State != StateIdle && s.State != StateCommitted
}

// parseAmount separates "not digits" from "zero" so the chat can answer
// each with its own prompt.
func parseAmount(s string) (int64, error) {
	v, err := core.ParseLimit(s)
	if err != nil {
		return 0, ErrNotANumber
	}
	if v <= 0 {
		return 0, core.ErrInvalidAmount
	}
	return v, nil
}
