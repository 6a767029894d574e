package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	old := configPath
	configPath = func() (string, error) { return path, nil }
	t.Cleanup(func() { configPath = old })
	return path
}

func TestLoadDefaults(t *testing.T) {
	withTempConfig(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8010 {
		t.Errorf("Port = %d, want 8010", cfg.Server.Port)
	}
	if cfg.Primary.Kind != "openai" || cfg.Fallback.Kind != "ollama" {
		t.Errorf("providers = %s/%s", cfg.Primary.Kind, cfg.Fallback.Kind)
	}
	if cfg.Learning.ContextLimit != 5 {
		t.Errorf("ContextLimit = %d, want 5", cfg.Learning.ContextLimit)
	}
	if cfg.RouterTimeout().Seconds() != 30 {
		t.Errorf("RouterTimeout = %v, want 30s", cfg.RouterTimeout())
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := withTempConfig(t)
	if err := os.WriteFile(path, []byte(`{"server.port":"9000","primary.model":"gpt-4o"}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VALET_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Env beats file, file beats defaults.
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Primary.Model != "gpt-4o" {
		t.Errorf("Model = %q, want file value gpt-4o", cfg.Primary.Model)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	withTempConfig(t)

	t.Setenv("VALET_PRIMARY_KIND", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Error("Load with unknown provider kind succeeded, want error")
	}
}

func TestSetKey(t *testing.T) {
	withTempConfig(t)

	if err := SetKey("primary.model", "gpt-4o"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := SetKey("not.a.key", "x"); err == nil {
		t.Error("SetKey with unknown key succeeded, want error")
	}
	if err := SetKey("server.port", "not-a-number"); err == nil {
		t.Error("SetKey with bad value succeeded, want error")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Primary.Model != "gpt-4o" {
		t.Errorf("Model = %q after SetKey", cfg.Primary.Model)
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Primary.APIKey = "sk-very-secret"

	out := ShowAll(&cfg)
	if out["primary.api_key"] != "********" {
		t.Errorf("api key not masked: %q", out["primary.api_key"])
	}
	if out["primary.model"] != "gpt-4.1-mini" {
		t.Errorf("model = %q", out["primary.model"])
	}
}
