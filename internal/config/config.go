// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal images

	"github.com/caarlos0/env/v8"

	"budgetbot/internal/core"
)

// Supported DATA_BACKEND values.
const (
	BackendMemory = "memory"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

type GoogleConfig struct {
	SpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	TransactionsSheet  string `env:"GOOGLE_TRANSACTIONS_SHEET" envDefault:"Transactions"`
	CategoriesSheet    string `env:"GOOGLE_CATEGORIES_SHEET" envDefault:"Categories"`
	PersonsSheet       string `env:"GOOGLE_PERSONS_SHEET" envDefault:"Persons"`
	ContributionsSheet string `env:"GOOGLE_CONTRIBUTIONS_SHEET" envDefault:"Contributions"`

	ServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	ServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	OAuthClientJSON    string `env:"GOOGLE_OAUTH_CLIENT_JSON"`
	OAuthClientFile    string `env:"GOOGLE_OAUTH_CLIENT_FILE"`
	OAuthTokenJSON     string `env:"GOOGLE_OAUTH_TOKEN_JSON"`
	OAuthTokenFile     string `env:"GOOGLE_OAUTH_TOKEN_FILE"`
}

type TelegramConfig struct {
	Token   string `env:"TELEGRAM_TOKEN"`
	Timeout int    `env:"TELEGRAM_TIMEOUT" envDefault:"60"` // long-poll seconds
	Debug   bool   `env:"TELEGRAM_DEBUG"`
}

type HouseholdConfig struct {
	AllowedIDs  []int64 `env:"ALLOWED_IDS"`
	AdminIDs    []int64 `env:"ADMIN_IDS"`
	PersonAID   int64   `env:"PERSON_A_ID"`
	PersonBID   int64   `env:"PERSON_B_ID"`
	PersonAName string  `env:"PERSON_A_NAME"`
	PersonBName string  `env:"PERSON_B_NAME"`
	Timezone    string  `env:"TIMEZONE" envDefault:"Europe/Kyiv"`

	RecentLimit       int  `env:"RECENT_LIMIT" envDefault:"5"`
	RefreshPerRequest bool `env:"REFRESH_PER_REQUEST"`
}

type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"budget"`
	Queue    string `env:"AMQP_QUEUE" envDefault:"ledger_alerts"`
}

type Config struct {
	// HTTP Server
	Port               string        `env:"PORT" envDefault:"8081"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	TrustedProxies     []string      `env:"TRUSTED_PROXIES"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Backend selection
	DataBackend  string `env:"DATA_BACKEND" envDefault:"memory"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/budget.db"`
	SeedFile     string `env:"SEED_FILE"`

	// Rendering
	Currency string `env:"CURRENCY" envDefault:"грн"`
	Locale   string `env:"LOCALE" envDefault:"uk"`

	// Chat sessions; in memory when RedisURL is empty.
	RedisURL   string        `env:"REDIS_URL"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	// Alerts
	NotifyChatIDs []int64 `env:"NOTIFY_CHAT_IDS"`

	Google    GoogleConfig
	Telegram  TelegramConfig
	Household HouseholdConfig
	AMQP      AMQPConfig
}

// Load parses the environment into a Config with defaults applied.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Location returns the household time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Household.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HouseholdIDs returns the two persons' identities and fallback names.
func (c *Config) HouseholdIDs() core.Household {
	return core.Household{
		AIdentity: c.Household.PersonAID,
		BIdentity: c.Household.PersonBID,
		AName:     c.Household.PersonAName,
		BName:     c.Household.PersonBName,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{BackendMemory, BackendSheets, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
		}
	}

	if c.DataBackend == BackendSheets {
		errors = append(errors, c.Google.validate()...)
	}

	errors = append(errors, c.Household.validate()...)

	if c.RecentLimit() < 1 {
		errors = append(errors, fmt.Sprintf("invalid recent limit %d: must be at least 1", c.Household.RecentLimit))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if c.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be positive", c.RequestTimeout))
	}
	if c.Telegram.Timeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid telegram timeout %d: must not be negative", c.Telegram.Timeout))
	}

	if c.AMQP.URL != "" {
		if parsedURL, err := url.Parse(c.AMQP.URL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.Queue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL: %v", err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
		if c.SessionTTL <= 0 {
			errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be positive", c.SessionTTL))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// RecentLimit is the number of transactions the recent listing shows.
func (c *Config) RecentLimit() int {
	return c.Household.RecentLimit
}

func (g GoogleConfig) validate() []string {
	var errors []string
	if g.SpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
	}
	hasServiceAccount := g.ServiceAccountJSON != "" || g.ServiceAccountFile != ""
	hasClient := g.OAuthClientJSON != "" || g.OAuthClientFile != ""
	hasToken := g.OAuthTokenJSON != "" || g.OAuthTokenFile != ""
	if !hasServiceAccount && !(hasClient && hasToken) {
		errors = append(errors, "sheets backend needs GOOGLE_SERVICE_ACCOUNT_JSON/FILE or both an OAuth client and token")
	}
	for name, path := range map[string]string{
		"service account file":     g.ServiceAccountFile,
		"Google OAuth client file": g.OAuthClientFile,
		"Google OAuth token file":  g.OAuthTokenFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("%s does not exist: %s", name, path))
		}
	}
	slices.Sort(errors)
	return errors
}

func (h HouseholdConfig) validate() []string {
	var errors []string
	if len(h.AllowedIDs) == 0 {
		errors = append(errors, "ALLOWED_IDS must list at least one identity")
	}
	if h.PersonAID == 0 || h.PersonBID == 0 {
		errors = append(errors, "PERSON_A_ID and PERSON_B_ID are required")
	} else if h.PersonAID == h.PersonBID {
		errors = append(errors, "PERSON_A_ID and PERSON_B_ID must differ")
	}
	if _, err := time.LoadLocation(h.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", h.Timezone, err))
	}
	return errors
}
