package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.BatchSize != 100 {
		t.Errorf("batch size default = %d, want 100", cfg.Dispatch.BatchSize)
	}
	if cfg.Dispatch.MaxRetries != 3 {
		t.Errorf("max retries default = %d, want 3", cfg.Dispatch.MaxRetries)
	}
	if cfg.Provider.Type != "sparkpost" {
		t.Errorf("provider default = %q", cfg.Provider.Type)
	}
	if cfg.Tracking.QueueKey != "tracking:events" {
		t.Errorf("queue key default = %q", cfg.Tracking.QueueKey)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: "9090"
dispatch:
  batch_size: 50
  max_retries: 5
provider:
  type: ses
  ses_region: eu-west-1
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Dispatch.BatchSize != 50 || cfg.Dispatch.MaxRetries != 5 {
		t.Errorf("dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Provider.Type != "ses" || cfg.Provider.SESRegion != "eu-west-1" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-override/engine")
	t.Setenv("DISPATCH_BATCH_SIZE", "25")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URL != "postgres://env-override/engine" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if cfg.Dispatch.BatchSize != 25 {
		t.Errorf("batch size = %d, want 25", cfg.Dispatch.BatchSize)
	}
}
