package core

import (
	"errors"
	"fmt"
)

// Kind classifies command failures for the transports.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindAuthorization
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a command failure with a kind and an optional cause.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and code, so wrapped
// instances still compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

var (
	ErrInvalidAmount      = &Error{Kind: KindValidation, Code: "invalid amount"}
	ErrInvalidLimit       = &Error{Kind: KindValidation, Code: "invalid limit"}
	ErrInvalidPersonName  = &Error{Kind: KindValidation, Code: "invalid person name"}
	ErrInvalidLimitTarget = &Error{Kind: KindValidation, Code: "invalid limit target"}
	ErrUnknownCategory    = &Error{Kind: KindNotFound, Code: "category not found"}
	ErrUnknownCaller      = &Error{Kind: KindNotFound, Code: "unknown caller"}
	ErrAccessDenied       = &Error{Kind: KindAuthorization, Code: "access denied"}
	ErrNotAuthorized      = &Error{Kind: KindAuthorization, Code: "not authorized"}
	ErrStoreUnavailable   = &Error{Kind: KindUnavailable, Code: "store unavailable"}
)

// Unavailable wraps a store failure, keeping the cause reachable via errors.Unwrap.
func Unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Code: ErrStoreUnavailable.Code, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf reports the kind of err, 0 when it is not a command error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
