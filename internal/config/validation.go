package config

import (
	"fmt"
	"log/slog"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. HTTP configuration
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr cannot be empty", ErrInvalidHTTPAddr)
	}

	// 2. Generator configuration. Model names only matter when an API key
	// enables the external tiers; rule-only operation needs neither.
	if c.ExternalEnabled() && c.PrimaryModel == "" {
		return fmt.Errorf("%w: primary_model cannot be empty when OPENAI_API_KEY is set", ErrInvalidModelName)
	}

	// Tier timeout: 100ms to 60s. A shorter deadline cannot complete a
	// round trip; a longer one stalls the whole request past usefulness.
	if c.TierTimeoutMS < 100 || c.TierTimeoutMS > 60000 {
		return fmt.Errorf("%w: must be between 100 and 60000 ms, got %d", ErrInvalidTierTimeout, c.TierTimeoutMS)
	}

	if c.MaxReplyLength < 1 || c.MaxReplyLength > 10000 {
		return fmt.Errorf("%w: must be between 1 and 10000, got %d", ErrInvalidMaxReplyLength, c.MaxReplyLength)
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%w: rate_limit_rps cannot be negative, got %g", ErrInvalidRateLimit, c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("%w: rate_limit_burst must be at least 1 when limiting, got %d", ErrInvalidRateLimit, c.RateLimitBurst)
	}

	// 3. Conversation configuration
	if c.HistoryLimit < 1 || c.HistoryLimit > MaxAllowedHistoryLimit {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidHistoryLimit, MaxAllowedHistoryLimit, c.HistoryLimit)
	}

	if c.MaxPromptChars < 1 || c.MaxPromptChars > 100000 {
		return fmt.Errorf("%w: must be between 1 and 100000, got %d", ErrInvalidMaxPromptChars, c.MaxPromptChars)
	}

	// 4. In-memory store configuration
	if c.MaxSessions < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidMaxSessions, c.MaxSessions)
	}

	// 5. PostgreSQL configuration, only when enabled. A disabled backend is
	// the supported in-memory mode, not a misconfiguration.
	if !c.PostgresEnabled {
		return nil
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}

	// Warn on the default dev password but don't block; the user might be in dev.
	if c.PostgresPassword == "stan_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password for production deployments")
	}

	// Modern SSL modes only; the deprecated allow/prefer modes are MITM
	// vulnerable. Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
