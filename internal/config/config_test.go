package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sampling.Rate != 0.05 {
		t.Errorf("Sampling.Rate = %v, expected default 0.05", cfg.Sampling.Rate)
	}
	if cfg.Aggregation.ConflictPolicy != "latest" {
		t.Errorf("ConflictPolicy = %q, expected latest", cfg.Aggregation.ConflictPolicy)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, expected sqlite", cfg.Database.Driver)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9090"
sampling:
  rate: 0.2
  salt: custom-salt
aggregation:
  conflict_policy: mean
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, expected 9090", cfg.Server.Port)
	}
	if cfg.Sampling.Rate != 0.2 {
		t.Errorf("Sampling.Rate = %v, expected 0.2", cfg.Sampling.Rate)
	}
	if cfg.Sampling.Salt != "custom-salt" {
		t.Errorf("Sampling.Salt = %q, expected custom-salt", cfg.Sampling.Salt)
	}
	if cfg.Aggregation.ConflictPolicy != "mean" {
		t.Errorf("ConflictPolicy = %q, expected mean", cfg.Aggregation.ConflictPolicy)
	}
	// unspecified fields keep their defaults
	if cfg.Aggregation.BaseWeight != 0.3 {
		t.Errorf("BaseWeight = %v, expected default 0.3", cfg.Aggregation.BaseWeight)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SAMPLING_RATE", "0.5")
	t.Setenv("SAMPLING_SALT", "env-salt")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sampling.Rate != 0.5 {
		t.Errorf("Sampling.Rate = %v, expected env 0.5", cfg.Sampling.Rate)
	}
	if cfg.Sampling.Salt != "env-salt" {
		t.Errorf("Sampling.Salt = %q, expected env-salt", cfg.Sampling.Salt)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Server.Port = %q, expected 7070", cfg.Server.Port)
	}
}

func TestLoad_NormalizesOutOfRangeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sampling:
  rate: 3.0
aggregation:
  conflict_policy: majority
  confidence_decay: -1
export:
  page_size: 0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sampling.Rate != 1 {
		t.Errorf("Sampling.Rate = %v, expected clamp to 1", cfg.Sampling.Rate)
	}
	if cfg.Aggregation.ConflictPolicy != "latest" {
		t.Errorf("unknown conflict policy should fall back to latest, got %q", cfg.Aggregation.ConflictPolicy)
	}
	if cfg.Aggregation.ConfidenceDecay != 0.5 {
		t.Errorf("ConfidenceDecay = %v, expected fallback 0.5", cfg.Aggregation.ConfidenceDecay)
	}
	if cfg.Export.PageSize != 200 {
		t.Errorf("Export.PageSize = %v, expected fallback 200", cfg.Export.PageSize)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url      string
		addr     string
		password string
		db       int
	}{
		{"redis://localhost:6379/0", "localhost:6379", "", 0},
		{"redis://:secret@redis.internal:6380/2", "redis.internal:6380", "secret", 2},
		{"redis://localhost:6379", "localhost:6379", "", 0},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.parseRedisURL(tt.url)
		if cfg.Redis.Addr != tt.addr {
			t.Errorf("%s: Addr = %q, expected %q", tt.url, cfg.Redis.Addr, tt.addr)
		}
		if cfg.Redis.Password != tt.password {
			t.Errorf("%s: Password = %q, expected %q", tt.url, cfg.Redis.Password, tt.password)
		}
		if cfg.Redis.DB != tt.db {
			t.Errorf("%s: DB = %d, expected %d", tt.url, cfg.Redis.DB, tt.db)
		}
	}
}
