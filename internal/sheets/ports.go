package sheets

import (
	"context"

	"budgetbot/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerStore is the append-only transaction table.
	LedgerStore interface {
		// ScanAll returns every row in order; the first row is the header.
		ScanAll(ctx context.Context) ([][]string, error)
		Append(ctx context.Context, row []string) error
		// DeleteAt removes the 1-based store row; the header is row 1.
		DeleteAt(ctx context.Context, row int) error
	}

	// ReferenceSource loads and edits category, person and contribution data.
	ReferenceSource interface {
		LoadReference(ctx context.Context) (core.Reference, error)
		WriteCategoryLimit(ctx context.Context, category string, limit int64) error
		WritePersonLimit(ctx context.Context, person string, limit int64) error
	}

	// Backend bundles the two ports served by one storage technology.
	Backend interface {
		LedgerStore
		ReferenceSource
	}
)
