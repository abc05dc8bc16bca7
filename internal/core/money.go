// Package core provides the household budget domain types.
//
// This file contains parsing of user-entered amounts, limits and notes.
// Amounts are whole currency units; there are no fractional parts.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

const maxAmount = 1_000_000_000

// ParseAmount parses a positive whole amount typed by a user.
//
// Only ASCII digits are accepted (surrounding spaces are trimmed):
//
//	ParseAmount("850")  -> 850, nil
//	ParseAmount("0")    -> 0, ErrInvalidAmount
//	ParseAmount("12.5") -> 0, ErrInvalidAmount
//	ParseAmount("-3")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	v, err := parseDigits(s)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseLimit parses a non-negative whole limit; 0 means untracked.
func ParseLimit(s string) (int64, error) {
	v, err := parseDigits(s)
	if err != nil {
		return 0, ErrInvalidLimit
	}
	return v, nil
}

func parseDigits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v > maxAmount {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// NormalizeNote trims the note; a lone "." means no note.
func NormalizeNote(s string) string {
	s = strings.TrimSpace(s)
	if s == "." {
		return ""
	}
	// Drop control characters except tab and newline.
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 {
			return -1
		}
		return r
	}, s)
}
