package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetbot/internal/core"
	"budgetbot/internal/ledger"
	ports "budgetbot/internal/sheets"
)

// Store keeps the ledger and reference data in process memory.
type Store struct {
	mu   sync.Mutex
	rows [][]string
	ref  core.Reference
}

var _ ports.Backend = (*Store)(nil)

// New creates a store with an empty ledger (header only).
func New(ref core.Reference) *Store {
	return &Store{
		rows: [][]string{append([]string(nil), ledger.Header...)},
		ref:  ref.Clone(),
	}
}

// NewWithRows creates a store preloaded with data rows after the header.
func NewWithRows(ref core.Reference, rows [][]string) *Store {
	s := New(ref)
	for _, r := range rows {
		s.rows = append(s.rows, append([]string(nil), r...))
	}
	return s
}

// ScanAll returns a copy of every row, header first.
func (s *Store) ScanAll(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (s *Store) Append(_ context.Context, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, append([]string(nil), row...))
	return nil
}

func (s *Store) DeleteAt(_ context.Context, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 2 || row > len(s.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	s.rows = append(s.rows[:row-1], s.rows[row:]...)
	return nil
}

func (s *Store) LoadReference(_ context.Context) (core.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref.Clone(), nil
}

func (s *Store) WriteCategoryLimit(_ context.Context, category string, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ref.Categories {
		if s.ref.Categories[i].Name == category {
			s.ref.Categories[i].Limit = limit
			return nil
		}
	}
	return fmt.Errorf("category %q not found", category)
}

func (s *Store) WritePersonLimit(_ context.Context, person string, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ref.Persons {
		if s.ref.Persons[i].Name == person {
			s.ref.Persons[i].Limit = limit
			return nil
		}
	}
	return fmt.Errorf("person %q not found", person)
}
