package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Admin credential: either a plain secret or a bcrypt hash must be set
	if c.Admin.Secret == "" && c.Admin.SecretHash == "" {
		errs = append(errs, "ADMIN_SECRET or ADMIN_SECRET_HASH is required")
	}
	if c.Admin.Secret != "" && len(c.Admin.Secret) < 16 {
		errs = append(errs, "ADMIN_SECRET must be at least 16 characters")
	}
	if c.Admin.SecretHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Admin.SecretHash)); err != nil {
			errs = append(errs, "ADMIN_SECRET_HASH must be a valid bcrypt hash")
		}
	}

	// Gemini provider
	if c.Gemini.APIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}
	if c.Gemini.Timeout <= 0 {
		errs = append(errs, "GEMINI_TIMEOUT must be positive")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Rate limiter
	if c.RateLimit.MaxRequests < 1 {
		errs = append(errs, "RATELIMIT_MAX_REQUESTS must be at least 1")
	}
	if c.RateLimit.WindowSeconds < 1 {
		errs = append(errs, "RATELIMIT_WINDOW_SECONDS must be at least 1")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
