package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("LEASEBOT_TEST_TOKEN", "secret-token")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
general:
  defaultProvider: ollama
channels:
  whatsapp:
    enabled: true
    accessToken: ${LEASEBOT_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels.WhatsApp.AccessToken != "secret-token" {
		t.Fatalf("env var not expanded: %q", cfg.Channels.WhatsApp.AccessToken)
	}
	if cfg.General.DefaultProvider != "ollama" {
		t.Fatalf("expected ollama, got %q", cfg.General.DefaultProvider)
	}
}

func TestLoad_FallbacksApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("general: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels.SegmentLimit != 1500 {
		t.Fatalf("expected default segment limit 1500, got %d", cfg.Channels.SegmentLimit)
	}
	if cfg.Knowledge.TopK != 3 {
		t.Fatalf("expected default topK 3, got %d", cfg.Knowledge.TopK)
	}
	if cfg.RateLimit.MaxRequests != 10 || cfg.RateLimit.WindowMinutes != 10 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Defaults()
	cfg.General.ListenAddr = ":9090"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.General.ListenAddr != ":9090" {
		t.Fatalf("round trip lost listenAddr: %q", loaded.General.ListenAddr)
	}
}
