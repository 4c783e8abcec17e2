package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != defaultDBPath {
		t.Fatalf("expected default db path %q, got %q", defaultDBPath, cfg.DBPath)
	}
	if cfg.ServerPort != defaultServerPort {
		t.Fatalf("expected default port %d, got %d", defaultServerPort, cfg.ServerPort)
	}
	if cfg.RateLimit.Burst != defaultRateBurst {
		t.Fatalf("expected default burst %d, got %d", defaultRateBurst, cfg.RateLimit.Burst)
	}
	if cfg.ArchivePollRate != defaultArchivePollRate {
		t.Fatalf("expected default poll rate %s, got %s", defaultArchivePollRate, cfg.ArchivePollRate)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/other.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("ARCHIVE_POLL_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != "/tmp/other.db" {
		t.Fatalf("expected db path override, got %q", cfg.DBPath)
	}
	if cfg.ServerPort != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.ServerPort)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins: %#v", cfg.AllowedOrigins)
	}
	if cfg.ArchivePollRate != 30*time.Second {
		t.Fatalf("expected 30s poll rate, got %s", cfg.ArchivePollRate)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestLoadRejectsInvalidPollInterval(t *testing.T) {
	t.Setenv("ARCHIVE_POLL_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid poll interval")
	}
}
