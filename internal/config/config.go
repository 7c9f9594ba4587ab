// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.stan/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - HTTP: listen address and request timeouts
//   - Generation: external model chain (primary, backup) and reply bounds
//   - Storage: PostgreSQL connection (see storage.go); disabled by default,
//     the service then runs on the in-memory store
//   - Conversation: history and prompt bounds
//
// Security: sensitive data (passwords, API keys) is never logged; see
// MarshalJSON.
//
// Error handling uses sentinel errors checked with errors.Is(), wrapped with
// context via fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidHTTPAddr indicates the HTTP listen address is invalid.
	ErrInvalidHTTPAddr = errors.New("invalid HTTP listen address")

	// ErrInvalidModelName indicates a generator model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTierTimeout indicates the per-tier timeout is out of range.
	ErrInvalidTierTimeout = errors.New("invalid tier timeout")

	// ErrInvalidMaxReplyLength indicates the reply bound is out of range.
	ErrInvalidMaxReplyLength = errors.New("invalid max reply length")

	// ErrInvalidHistoryLimit indicates the history limit is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history limit")

	// ErrInvalidMaxPromptChars indicates the prompt bound is out of range.
	ErrInvalidMaxPromptChars = errors.New("invalid max prompt chars")

	// ErrInvalidMaxSessions indicates the in-memory session cap is invalid.
	ErrInvalidMaxSessions = errors.New("invalid max sessions")

	// ErrInvalidRateLimit indicates the generator rate limit is invalid.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultHTTPAddr is the default listen address.
	DefaultHTTPAddr = ":8080"

	// DefaultHistoryLimit is the default number of turns loaded per request.
	DefaultHistoryLimit = 20

	// MaxAllowedHistoryLimit is the absolute maximum to prevent OOM.
	MaxAllowedHistoryLimit = 1000
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update
// MarshalJSON.
type Config struct {
	// HTTP server configuration
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// External generator configuration. OpenAIAPIKey comes from the
	// OPENAI_API_KEY environment variable; when empty the service runs on
	// the rule-based tier alone.
	PrimaryModel   string `mapstructure:"primary_model" json:"primary_model"`
	BackupModel    string `mapstructure:"backup_model" json:"backup_model"`
	OpenAIAPIKey   string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	OpenAIBaseURL  string `mapstructure:"openai_base_url" json:"openai_base_url"`
	TierTimeoutMS  int    `mapstructure:"tier_timeout_ms" json:"tier_timeout_ms"`
	MaxReplyLength int    `mapstructure:"max_reply_length" json:"max_reply_length"`

	// Generator rate limiting, shared across external tiers.
	// Zero RateLimitRPS disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Conversation configuration
	HistoryLimit   int   `mapstructure:"history_limit" json:"history_limit"`
	MaxPromptChars int   `mapstructure:"max_prompt_chars" json:"max_prompt_chars"`
	FallbackSeed   int64 `mapstructure:"fallback_seed" json:"fallback_seed"` // 0 selects a time-based seed

	// Storage configuration (see storage.go for documentation).
	// PostgresEnabled false means the in-memory store, which is also the
	// automatic degradation target when PostgreSQL is unreachable.
	PostgresEnabled  bool   `mapstructure:"postgres_enabled" json:"postgres_enabled"`
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// In-memory store session cap.
	MaxSessions int `mapstructure:"max_sessions" json:"max_sessions"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".stan")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(configDir)

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{".", configDir},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// HTTP defaults
	viper.SetDefault("http_addr", DefaultHTTPAddr)

	// Generator defaults
	viper.SetDefault("primary_model", "gpt-4o-mini")
	viper.SetDefault("backup_model", "gpt-3.5-turbo")
	viper.SetDefault("tier_timeout_ms", 3000)
	viper.SetDefault("max_reply_length", 500)
	viper.SetDefault("rate_limit_rps", 5.0)
	viper.SetDefault("rate_limit_burst", 10)

	// Conversation defaults
	viper.SetDefault("history_limit", DefaultHistoryLimit)
	viper.SetDefault("max_prompt_chars", 1000)
	viper.SetDefault("fallback_seed", 0)

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_enabled", false)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "stan")
	viper.SetDefault("postgres_password", "stan_dev_password")
	viper.SetDefault("postgres_db_name", "stan")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// In-memory store defaults
	viper.SetDefault("max_sessions", 1000)
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Generator secrets and overrides
	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("openai_base_url", "OPENAI_BASE_URL")
	mustBind("primary_model", "STAN_PRIMARY_MODEL")
	mustBind("backup_model", "STAN_BACKUP_MODEL")

	// HTTP override
	mustBind("http_addr", "STAN_HTTP_ADDR")

	// Storage overrides. DATABASE_URL itself is handled by parseDatabaseURL.
	mustBind("postgres_enabled", "STAN_POSTGRES_ENABLED")
	mustBind("postgres_password", "STAN_POSTGRES_PASSWORD")
}

// TierTimeout returns the per-tier generator deadline as a Duration.
func (c *Config) TierTimeout() time.Duration {
	return time.Duration(c.TierTimeoutMS) * time.Millisecond
}

// ExternalEnabled reports whether external generator tiers are configured.
// Without an API key the service runs on the rule-based tier alone.
func (c *Config) ExternalEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 bytes or fewer are fully masked; longer secrets show the
// first and last 2 characters for debug utility.
//
// THREAT MODEL: this defends against accidental logging of real secrets.
// It is not cryptographically secure; if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - OpenAIAPIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
