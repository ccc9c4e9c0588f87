package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("FAQ_MATCH_THRESHOLD", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.FAQMatchThreshold != 0.7 {
		t.Fatalf("expected default faq threshold, got %v", cfg.FAQMatchThreshold)
	}
	if cfg.MenuStateTTL != 5*time.Minute {
		t.Fatalf("expected default menu state ttl, got %s", cfg.MenuStateTTL)
	}
	if cfg.MaxTurnsBeforeAgent != 10 {
		t.Fatalf("expected default turn cap, got %d", cfg.MaxTurnsBeforeAgent)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("FAQ_MATCH_THRESHOLD", "0.85")
	t.Setenv("MENU_STATE_TTL", "10m")
	t.Setenv("INSTAFIN_API_BASE_URL", "https://core.example.com")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.FAQMatchThreshold != 0.85 {
		t.Fatalf("expected threshold override, got %v", cfg.FAQMatchThreshold)
	}
	if cfg.MenuStateTTL != 10*time.Minute {
		t.Fatalf("expected ttl override, got %s", cfg.MenuStateTTL)
	}
	if cfg.InstafinBaseURL != "https://core.example.com" {
		t.Fatalf("expected instafin base url override, got %s", cfg.InstafinBaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("expected cors origins parsed, got %#v", cfg.CORSAllowedOrigins)
	}
}
