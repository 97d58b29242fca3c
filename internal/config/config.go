// Package config loads process configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lifehub/internal/middleware/auth"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendPostgres}

type Config struct {
	// HTTP Server
	Port               string `yaml:"port"`
	LogLevel           string `yaml:"log_level"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	APITokens          string `yaml:"api_tokens"`
	TrustedProxies     string `yaml:"trusted_proxies"`

	// Storage
	DataBackend  string `yaml:"data_backend"`
	SQLiteDBPath string `yaml:"sqlite_db_path"`
	PostgresURL  string `yaml:"postgres_url"`

	// Accounting
	AllowOverdraft bool `yaml:"allow_overdraft"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets export
	GoogleSpreadsheetID      string `yaml:"google_spreadsheet_id"`
	GoogleTransactionsSheet  string `yaml:"google_transactions_sheet"`
	GoogleNetWorthSheet      string `yaml:"google_networth_sheet"`
	GoogleServiceAccountJSON string `yaml:"-"`
	GoogleServiceAccountFile string `yaml:"google_service_account_file"`

	// Caches and background work
	SessionTTL       time.Duration `yaml:"session_ttl"`
	BoardCacheTTL    time.Duration `yaml:"board_cache_ttl"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:               "8081",
		LogLevel:           "info",
		RateLimitPerMinute: 60,
		DataBackend:        BackendSQLite,
		SQLiteDBPath:       "./data/lifehub.db",
		AMQPExchange:       "lifehub",
		AMQPQueue:          "lifehub_events",
		SessionTTL:         12 * time.Hour,
		BoardCacheTTL:      5 * time.Minute,
		SnapshotInterval:   24 * time.Hour,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.APITokens = getEnv("API_TOKENS", c.APITokens)
	c.TrustedProxies = getEnv("TRUSTED_PROXIES", c.TrustedProxies)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.PostgresURL = getEnv("DATABASE_URL", c.PostgresURL)

	c.AllowOverdraft = getEnvBool("ALLOW_OVERDRAFT", c.AllowOverdraft)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleTransactionsSheet = getEnv("GOOGLE_TRANSACTIONS_SHEET", c.GoogleTransactionsSheet)
	c.GoogleNetWorthSheet = getEnv("GOOGLE_NETWORTH_SHEET", c.GoogleNetWorthSheet)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)

	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.BoardCacheTTL = getEnvDuration("BOARD_CACHE_TTL", c.BoardCacheTTL)
	c.SnapshotInterval = getEnvDuration("SNAPSHOT_INTERVAL", c.SnapshotInterval)
}

// Tokens parses APITokens.
func (c *Config) Tokens() (auth.Tokens, error) {
	return auth.ParseTokens(c.APITokens)
}

// TrustedProxyCIDRs splits TrustedProxies, a comma separated CIDR list,
// added to the built-in loopback and private ranges.
func (c *Config) TrustedProxyCIDRs() []string {
	var cidrs []string
	for _, cidr := range strings.Split(c.TrustedProxies, ",") {
		if cidr = strings.TrimSpace(cidr); cidr != "" {
			cidrs = append(cidrs, cidr)
		}
	}
	return cidrs
}

// SheetsEnabled reports whether spreadsheet export is configured.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendPostgres:
		if u, err := url.Parse(c.PostgresURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "DATABASE_URL must be a postgres:// URL when using postgres backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() && c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		errors = append(errors, "Google export needs GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if _, err := c.Tokens(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API_TOKENS: %v", err))
	}

	for _, cidr := range c.TrustedProxyCIDRs() {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.BoardCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid board cache TTL %v: cannot be negative", c.BoardCacheTTL))
	}
	if c.SnapshotInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at least 1 minute", c.SnapshotInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
