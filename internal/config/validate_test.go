package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "albumforge",
			Password: "secret", Name: "albumforge", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Gemini: GeminiConfig{
			APIKey:  "test-provider-key",
			Model:   "gemini-3-pro-image-preview",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: 2 * time.Minute,
		},
		Admin:     AdminConfig{Secret: "an-admin-secret-long-enough"},
		RateLimit: RateLimitConfig{MaxRequests: 30, WindowSeconds: 60},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_AdminCredentialRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Secret = ""
	cfg.Admin.SecretHash = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "ADMIN_SECRET") {
		t.Fatalf("expected ADMIN_SECRET error, got: %v", err)
	}
}

func TestValidate_AdminSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Secret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "at least 16 characters") {
		t.Fatalf("expected short secret error, got: %v", err)
	}
}

func TestValidate_AdminSecretHashMustBeBcrypt(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.SecretHash = "not-a-bcrypt-hash"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "bcrypt") {
		t.Fatalf("expected bcrypt hash error, got: %v", err)
	}
}

func TestValidate_AdminSecretHashAlone(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Secret = ""
	// bcrypt hash of "admin" with cost 10
	cfg.Admin.SecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error with hash-only credential, got: %v", err)
	}
}

func TestValidate_GeminiAPIKeyRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Gemini.APIKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected GEMINI_API_KEY error, got: %v", err)
	}
}

func TestValidate_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_InvalidPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.DB.Port = 99999
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected port validation errors")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected SERVER_PORT error in: %v", err)
	}
	if !strings.Contains(err.Error(), "DB_PORT") {
		t.Errorf("expected DB_PORT error in: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		DB:     DBConfig{Port: 5432},
		Redis:  RedisConfig{Port: 6379},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	errStr := err.Error()
	for _, substr := range []string{"ADMIN_SECRET", "GEMINI_API_KEY", "DB_PASSWORD", "SERVER_PORT"} {
		if !strings.Contains(errStr, substr) {
			t.Errorf("expected %q in error: %s", substr, errStr)
		}
	}
}
