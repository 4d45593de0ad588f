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

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
safetyculture:
  template_id: template_123
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.SafetyCulture.BaseURL != "https://api.safetyculture.io" {
		t.Errorf("BaseURL = %q", cfg.SafetyCulture.BaseURL)
	}
	if cfg.SafetyCulture.GetTimeout() != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.SafetyCulture.GetTimeout())
	}
	if cfg.Sync.Mode != "incremental" {
		t.Errorf("Mode = %q", cfg.Sync.Mode)
	}
	if cfg.Sync.PageSize != 100 {
		t.Errorf("PageSize = %d", cfg.Sync.PageSize)
	}
	rule, ok := cfg.Sync.SerialPrefixRules["IG"]
	if !ok || rule.Length != 3 || rule.Warranty != 3 {
		t.Errorf("default IG rule = %+v (present=%v)", rule, ok)
	}
	if len(cfg.Sync.Labels.UnitSN) != 1 || cfg.Sync.Labels.UnitSN[0] != "Unit Serial Number" {
		t.Errorf("UnitSN labels = %v", cfg.Sync.Labels.UnitSN)
	}
	if cfg.StateStorage.Type != "sqlite" {
		t.Errorf("StateStorage.Type = %q", cfg.StateStorage.Type)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
safetyculture:
  template_id: template_123
  base_url: https://sc.example.test
sync:
  mode: full
  warranty_period_days: 365
  serial_prefix_rules:
    TM:
      length: 2
      warranty: 5
  labels:
    unit_sn:
      - Serial
      - Unit Serial Number
state_storage:
  type: mysql
  host: db.internal
  port: 3306
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.SafetyCulture.BaseURL != "https://sc.example.test" {
		t.Errorf("BaseURL = %q", cfg.SafetyCulture.BaseURL)
	}
	if cfg.Sync.Mode != "full" || cfg.Sync.WarrantyPeriodDays != 365 {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	// viper lowercases map keys read from the file.
	if rule := cfg.Sync.SerialPrefixRules["tm"]; rule.Length != 2 || rule.Warranty != 5 {
		t.Errorf("TM rule = %+v", rule)
	}
	if got := cfg.Sync.Labels.UnitSN; len(got) != 2 || got[0] != "Serial" {
		t.Errorf("UnitSN labels = %v", got)
	}
	if cfg.StateStorage.Type != "mysql" || cfg.StateStorage.Host != "db.internal" {
		t.Errorf("state storage = %+v", cfg.StateStorage)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("WARRANTY_SYNC_SAFETYCULTURE_API_TOKEN", "env-secret")
	path := writeConfig(t, `
safetyculture:
  template_id: template_123
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SafetyCulture.APIToken != "env-secret" {
		t.Errorf("APIToken = %q, want env override", cfg.SafetyCulture.APIToken)
	}
}

func TestLoadConfigRequiresTemplateID(t *testing.T) {
	path := writeConfig(t, `
safetyculture:
  base_url: https://sc.example.test
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for missing template_id")
	}
}
