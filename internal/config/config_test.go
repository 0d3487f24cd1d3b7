package config

import (
	"testing"
	"time"
)

// --- テスト ---

func TestLoad_RequiresDatabaseURLAndJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when required variables are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/minigram?sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want 24h", cfg.JWTExpiry)
	}
	if cfg.RateLimitGeneral != 120 || cfg.RateLimitPostCreate != 10 {
		t.Errorf("rate limits = (%d, %d), want (120, 10)", cfg.RateLimitGeneral, cfg.RateLimitPostCreate)
	}
	if cfg.DefaultPageSize != 10 || cfg.MaxPageSize != 50 {
		t.Errorf("page sizes = (%d, %d), want (10, 50)", cfg.DefaultPageSize, cfg.MaxPageSize)
	}
	if !cfg.ImageProbeEnabled {
		t.Error("ImageProbeEnabled = false, want true")
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/minigram?sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRY", "1h")
	t.Setenv("RATE_LIMIT_GENERAL", "60")
	t.Setenv("IMAGE_PROBE_ENABLED", "false")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.JWTExpiry != 1*time.Hour {
		t.Errorf("JWTExpiry = %v, want 1h", cfg.JWTExpiry)
	}
	if cfg.RateLimitGeneral != 60 {
		t.Errorf("RateLimitGeneral = %d, want 60", cfg.RateLimitGeneral)
	}
	if cfg.ImageProbeEnabled {
		t.Error("ImageProbeEnabled = true, want false")
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/minigram?sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("RATE_LIMIT_GENERAL", "not-a-number")
	t.Setenv("JWT_EXPIRY", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want default 120", cfg.RateLimitGeneral)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want default 24h", cfg.JWTExpiry)
	}
}
