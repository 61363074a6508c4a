package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.QuoteBaseURL == "" {
		t.Error("quote base URL has no default")
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("refresh interval = %s, want 30s", cfg.RefreshInterval)
	}
	if cfg.ConfirmTimeout != 5*time.Minute {
		t.Errorf("confirm timeout = %s, want 5m", cfg.ConfirmTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %s, want info", cfg.LogLevel)
	}
}

func TestRequireSigner(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireSigner(); err == nil {
		t.Error("missing private key accepted")
	}

	cfg.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	if err := cfg.RequireSigner(); err != nil {
		t.Errorf("RequireSigner with key: %v", err)
	}
}

func TestGetAndSet(t *testing.T) {
	custom := &Config{QuoteBaseURL: "http://localhost:9999"}
	Set(custom)

	if got := Get(); got.QuoteBaseURL != "http://localhost:9999" {
		t.Errorf("Get after Set = %+v", got)
	}

	Set(nil)
}
