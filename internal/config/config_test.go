package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerAddr != ":8080" {
		t.Errorf("ServerAddr = %q, want :8080", cfg.ServerAddr)
	}
	if cfg.EditWindow != 15*time.Minute {
		t.Errorf("EditWindow = %v, want 15m", cfg.EditWindow)
	}
	if cfg.TypingTTL != 5*time.Second {
		t.Errorf("TypingTTL = %v, want 5s", cfg.TypingTTL)
	}
	if cfg.PresenceTTL != 60*time.Second {
		t.Errorf("PresenceTTL = %v, want 60s", cfg.PresenceTTL)
	}
	if cfg.PresenceAwayAfter != 5*time.Minute {
		t.Errorf("PresenceAwayAfter = %v, want 5m", cfg.PresenceAwayAfter)
	}
	if cfg.Database.MaxConnections != 20 {
		t.Errorf("Database.MaxConnections = %d, want 20", cfg.Database.MaxConnections)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9091")
	t.Setenv("EDIT_WINDOW_MINUTES", "30")
	t.Setenv("TYPING_TTL_SECONDS", "2")
	t.Setenv("PRESENCE_TTL_SECONDS", "120")
	t.Setenv("PRESENCE_AWAY_AFTER_MINUTES", "10")
	t.Setenv("DATABASE_URL", "postgres://app:app@db:5432/messaging")
	t.Setenv("IDENTITY_SERVICE_URL", "http://identity:8081")

	cfg := Load()

	if cfg.ServerAddr != ":9091" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.EditWindow != 30*time.Minute {
		t.Errorf("EditWindow = %v, want 30m", cfg.EditWindow)
	}
	if cfg.TypingTTL != 2*time.Second {
		t.Errorf("TypingTTL = %v, want 2s", cfg.TypingTTL)
	}
	if cfg.PresenceTTL != 120*time.Second {
		t.Errorf("PresenceTTL = %v, want 120s", cfg.PresenceTTL)
	}
	if cfg.PresenceAwayAfter != 10*time.Minute {
		t.Errorf("PresenceAwayAfter = %v, want 10m", cfg.PresenceAwayAfter)
	}
	if cfg.Database.URL != "postgres://app:app@db:5432/messaging" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.IdentityServiceURL != "http://identity:8081" {
		t.Errorf("IdentityServiceURL = %q", cfg.IdentityServiceURL)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.yaml")
	data := []byte("server_addr: \":7070\"\nedit_window_minutes: 60\ntyping_ttl_seconds: 3\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg := Load()
	if cfg.ServerAddr != ":7070" {
		t.Errorf("ServerAddr = %q, want :7070", cfg.ServerAddr)
	}
	if cfg.EditWindow != time.Hour {
		t.Errorf("EditWindow = %v, want 1h", cfg.EditWindow)
	}
	if cfg.TypingTTL != 3*time.Second {
		t.Errorf("TypingTTL = %v, want 3s", cfg.TypingTTL)
	}

	// Environment still wins over the file.
	t.Setenv("TYPING_TTL_SECONDS", "8")
	cfg = Load()
	if cfg.TypingTTL != 8*time.Second {
		t.Errorf("TypingTTL with env = %v, want 8s", cfg.TypingTTL)
	}
}

func TestInvalidEnvIntFallsBack(t *testing.T) {
	t.Setenv("EDIT_WINDOW_MINUTES", "soon")
	cfg := Load()
	if cfg.EditWindow != 15*time.Minute {
		t.Errorf("EditWindow = %v, want the 15m default", cfg.EditWindow)
	}
}
