package config

import (
	"os"
	"testing"
	"time"
)

// setEnv sets environment variables for the test and restores the
// previous values afterwards.
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		original, had := os.LookupEnv(key)
		if value == "" {
			_ = os.Unsetenv(key)
		} else {
			_ = os.Setenv(key, value)
		}
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(key, original)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/taxqual",
		"CACHE_TTL":    "10m",
		"PAGE_SIZE":    "25",
		"PORT":         "",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("expected 10m cache TTL, got %v", cfg.CacheTTL)
	}
	if cfg.PageSize != 25 {
		t.Errorf("expected page size 25, got %d", cfg.PageSize)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setEnv(t, map[string]string{"DATABASE_URL": ""})

	if _, err := Load(); err == nil {
		t.Error("Load should fail without DATABASE_URL")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://x", PageSize: 0, CacheTTL: time.Minute}
	if err := cfg.Validate(); err == nil {
		t.Error("zero page size should be rejected")
	}

	cfg = Config{DatabaseURL: "postgres://x", PageSize: 10, CacheTTL: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("zero cache TTL should be rejected")
	}
}
