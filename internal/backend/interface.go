// Package backend opens the storage selected by DATA_BACKEND.
package backend

import (
	"context"

	"budgetbot/internal/sheets"
)

// Backend serves both the ledger and the reference data.
type Backend = sheets.Backend

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and its cleanup function.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Ready returns a readiness check that reads the reference data.
func Ready(src sheets.ReferenceSource) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := src.LoadReference(ctx)
		return err
	}
}
