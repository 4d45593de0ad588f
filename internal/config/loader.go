package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads the YAML config file at path and unmarshals it into a
// Config. Environment variables prefixed WARRANTY_SYNC_ override file values
// (e.g. WARRANTY_SYNC_SAFETYCULTURE_API_TOKEN).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("WARRANTY_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.SafetyCulture.TemplateID == "" {
		return nil, fmt.Errorf("safetyculture.template_id is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("safetyculture.base_url", "https://api.safetyculture.io")
	// Registered so the WARRANTY_SYNC_SAFETYCULTURE_API_TOKEN env override
	// is picked up even when the file omits the key.
	v.SetDefault("safetyculture.api_token", "")
	v.SetDefault("safetyculture.timeout", "30s")

	v.SetDefault("sync.mode", "incremental")
	v.SetDefault("sync.page_size", 100)
	v.SetDefault("sync.warranty_period_days", 1095)
	v.SetDefault("sync.serial_prefix_rules", map[string]SerialRule{
		"IG": {Length: 3, Warranty: 3},
	})
	v.SetDefault("sync.labels.audit_date", []string{"Conducted on"})
	v.SetDefault("sync.labels.unit_sn", []string{"Unit Serial Number"})
	v.SetDefault("sync.labels.ums_sn", []string{"UMS QR Code"})
	v.SetDefault("sync.labels.tm_device_id", []string{"Unit QR Code"})

	v.SetDefault("state_storage.type", "sqlite")
	v.SetDefault("state_storage.file_path", "warranty-sync.db")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "@daily")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
