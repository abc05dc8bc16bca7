package backend

import (
	"errors"
	"fmt"

	"budgetbot/internal/config"
	"budgetbot/internal/core"
	"budgetbot/internal/sheets/google"
)

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = config.BackendSQLite
	SheetsBackend BackendType = config.BackendSheets
	MemoryBackend BackendType = config.BackendMemory
)

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Seed for the memory backend and for an empty SQLite database; the
	// built-in household is used when SeedFile is empty.
	SeedFile  string
	Household core.Household

	// Google Sheets specific
	Google google.Options
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	g := appConfig.Google
	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedFile:     appConfig.SeedFile,
		Household:    appConfig.HouseholdIDs(),
		Google: google.Options{
			SpreadsheetID:      g.SpreadsheetID,
			TransactionsSheet:  g.TransactionsSheet,
			CategoriesSheet:    g.CategoriesSheet,
			PersonsSheet:       g.PersonsSheet,
			ContributionsSheet: g.ContributionsSheet,
			ServiceAccountJSON: g.ServiceAccountJSON,
			ServiceAccountFile: g.ServiceAccountFile,
			OAuthClientJSON:    g.OAuthClientJSON,
			OAuthClientFile:    g.OAuthClientFile,
			OAuthTokenJSON:     g.OAuthTokenJSON,
			OAuthTokenFile:     g.OAuthTokenFile,
		},
	}, nil
}
