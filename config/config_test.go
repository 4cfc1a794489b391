package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store != StoreMongo || cfg.ScanInterval != 30*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.RetryMaxTries != 5 || cfg.LeaderboardSize != 3 || cfg.WatchMatches {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if len(cfg.AdminGroups) != 1 || cfg.AdminGroups[0] != "eboard" {
		t.Errorf("AdminGroups = %v", cfg.AdminGroups)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("VOTE_STORE", "memory")
	t.Setenv("VOTE_SCAN_INTERVAL", "5s")
	t.Setenv("VOTE_WATCH_MATCHES", "true")
	t.Setenv("VOTE_ADMIN_GROUPS", "eboard,rtp")
	t.Setenv("VOTE_OIDC_ID", "vote")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.ScanInterval != 5*time.Second || !cfg.WatchMatches {
		t.Errorf("environment not applied: %+v", cfg)
	}
	if len(cfg.AdminGroups) != 2 || cfg.AdminGroups[1] != "rtp" {
		t.Errorf("AdminGroups = %v", cfg.AdminGroups)
	}
	if cfg.Auth.ClientID != "vote" {
		t.Errorf("Auth.ClientID = %q", cfg.Auth.ClientID)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("VOTE_DATABASE=fromfile\nVOTE_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Registers cleanup so the variables godotenv sets are removed afterwards.
	t.Setenv("VOTE_DATABASE", "")
	os.Unsetenv("VOTE_DATABASE")
	t.Setenv("VOTE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "fromfile" {
		t.Errorf("Database = %q, want value from file", cfg.Database)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, environment should win over the file", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"store", "VOTE_STORE", "postgres", "VOTE_STORE"},
		{"interval", "VOTE_SCAN_INTERVAL", "0s", "VOTE_SCAN_INTERVAL"},
		{"size", "VOTE_LEADERBOARD_SIZE", "0", "VOTE_LEADERBOARD_SIZE"},
		{"unparsable", "VOTE_STORE_TIMEOUT", "soon", "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
