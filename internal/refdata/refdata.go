// Package refdata owns the in-memory copy of categories, persons and
// contributions. It is created once at startup and passed to the command
// handlers; Refresh re-reads it from the backing store.
package refdata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"budgetbot/internal/core"
	"budgetbot/internal/sheets"
)

type Store struct {
	src    sheets.ReferenceSource
	logger *slog.Logger

	mu  sync.RWMutex
	ref core.Reference

	group singleflight.Group
}

func New(src sheets.ReferenceSource, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{src: src, logger: logger}
}

// Load performs the initial read and fails when the source is unreachable.
func Load(ctx context.Context, src sheets.ReferenceSource, logger *slog.Logger) (*Store, error) {
	s := New(src, logger)
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns a copy of the current reference data.
func (s *Store) Snapshot() core.Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ref.Clone()
}

// Refresh re-reads reference data. Concurrent callers share one read.
func (s *Store) Refresh(ctx context.Context) error {
	_, err, shared := s.group.Do("refresh", func() (any, error) {
		ref, err := s.src.LoadReference(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.ref = ref
		s.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return core.Unavailable("load reference data", err)
	}
	s.logger.Debug("Reference data refreshed", "shared", shared)
	return nil
}

// UpdateCategoryLimit writes the new limit to the source and then to memory
// while holding the write lock, so readers see either the old or new value.
func (s *Store) UpdateCategoryLimit(ctx context.Context, name string, limit int64) error {
	if limit < 0 {
		return core.ErrInvalidLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.ref.Categories {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ErrUnknownCategory
	}
	if err := s.src.WriteCategoryLimit(ctx, name, limit); err != nil {
		return core.Unavailable(fmt.Sprintf("write limit of category %q", name), err)
	}
	s.ref.Categories[idx].Limit = limit
	return nil
}

// UpdatePersonLimit changes a personal limit; only persons present in
// reference data can be edited.
func (s *Store) UpdatePersonLimit(ctx context.Context, name string, limit int64) error {
	if limit < 0 {
		return core.ErrInvalidLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.ref.Persons {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ErrInvalidPersonName
	}
	if err := s.src.WritePersonLimit(ctx, name, limit); err != nil {
		return core.Unavailable(fmt.Sprintf("write limit of person %q", name), err)
	}
	s.ref.Persons[idx].Limit = limit
	return nil
}
