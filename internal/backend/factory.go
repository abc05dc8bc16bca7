package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budgetbot/internal/config"
	"budgetbot/internal/core"
	blog "budgetbot/internal/log"
	"budgetbot/internal/seed"
	"budgetbot/internal/sheets/google"
	"budgetbot/internal/sheets/memory"
	"budgetbot/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	return &DefaultFactory{logger: blog.Component(logger, blog.ComponentBackend)}
}

func noCleanup() error { return nil }

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	switch cfg.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, cfg)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, cfg)
	case MemoryBackend:
		return f.createMemoryBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	file, err := seedFile(cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}
	seeded, err := repo.SeedReference(ctx, file.Reference())
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("seed sqlite backend: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath, "seeded", seeded)
	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	client, err := google.New(ctx, cfg.Google)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", cfg.Google.SpreadsheetID)
	return &BackendResult{Backend: client, Cleanup: noCleanup}, nil
}

func (f *DefaultFactory) createMemoryBackend(cfg Config) (*BackendResult, error) {
	file, err := seedFile(cfg)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Initialized memory backend", "seed_file", cfg.SeedFile, "transactions", len(file.Transactions))
	return &BackendResult{
		Backend: memory.NewWithRows(file.Reference(), file.Transactions),
		Cleanup: noCleanup,
	}, nil
}

// seedFile reads the configured seed, or falls back to the built-in
// household with the configured identities and names.
func seedFile(cfg Config) (seed.File, error) {
	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return seed.File{}, fmt.Errorf("load seed %s: %w", cfg.SeedFile, err)
		}
		return f, nil
	}
	f := seed.Default()
	applyHousehold(&f, cfg.Household)
	return f, nil
}

func applyHousehold(f *seed.File, h core.Household) {
	if len(f.Persons) < 2 {
		return
	}
	for i, p := range []struct {
		id   int64
		name string
	}{{h.AIdentity, h.AName}, {h.BIdentity, h.BName}} {
		if p.id != 0 {
			f.Persons[i].ID = p.id
		}
		if p.name == "" {
			continue
		}
		old := f.Persons[i].Name
		f.Persons[i].Name = p.name
		for j := range f.Categories {
			if f.Categories[j].Owner == old {
				f.Categories[j].Owner = p.name
			}
		}
		for _, other := range f.Persons {
			if v, ok := other.Shares[old]; ok {
				delete(other.Shares, old)
				other.Shares[p.name] = v
			}
		}
	}
}

// Open converts the application config and creates its backend.
func Open(ctx context.Context, appConfig *config.Config, logger *slog.Logger) (Backend, CleanupFunc, error) {
	bc, err := FromAppConfig(appConfig)
	if err != nil {
		return nil, nil, err
	}
	res, err := NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, nil, err
	}
	return res.Backend, res.Cleanup, nil
}
