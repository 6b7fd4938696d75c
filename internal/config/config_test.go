package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RPCEndpoint == "" {
		t.Error("default rpc endpoint missing")
	}
	if cfg.Limits.TransactionRPS != 8 {
		t.Errorf("TransactionRPS = %d, want 8", cfg.Limits.TransactionRPS)
	}
}

func TestLoadFileLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
rpc_endpoint: https://rpc.example.com
min_date: "2024-01-15"
meteora:
  rate_limit: 5
limits:
  transaction_rps: 20
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RPCEndpoint != "https://rpc.example.com" {
		t.Errorf("RPCEndpoint = %s", cfg.RPCEndpoint)
	}
	if cfg.Limits.TransactionRPS != 20 {
		t.Errorf("TransactionRPS = %d, want 20", cfg.Limits.TransactionRPS)
	}
	// Untouched settings keep their defaults.
	if cfg.Limits.SignatureRPS != 4 {
		t.Errorf("SignatureRPS = %d, want 4", cfg.Limits.SignatureRPS)
	}

	minDate, err := cfg.MinDateTime()
	if err != nil {
		t.Fatalf("MinDateTime failed: %v", err)
	}
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !minDate.Equal(want) {
		t.Errorf("MinDateTime = %v, want %v", minDate, want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "rpc_endpoint: https://from-file.example.com\n")
	t.Setenv("DLMM_RPC_ENDPOINT", "https://from-env.example.com")
	t.Setenv("DLMM_MAX_RETRIES", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RPCEndpoint != "https://from-env.example.com" {
		t.Errorf("RPCEndpoint = %s, want env value", cfg.RPCEndpoint)
	}
	if cfg.Limits.MaxRetries != 9 {
		t.Errorf("MaxRetries = %d, want 9", cfg.Limits.MaxRetries)
	}
}

func TestValidateRejectsBadMinDate(t *testing.T) {
	path := writeConfig(t, "min_date: 15.01.2024\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected invalid min_date to fail")
	}
}

func TestValidateRejectsZeroRate(t *testing.T) {
	path := writeConfig(t, "limits:\n  transaction_rps: 0\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected zero transaction_rps to fail")
	}
}
