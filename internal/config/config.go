package config

import (
	"time"
)

type Config struct {
	SafetyCulture SafetyCultureConfig `mapstructure:"safetyculture"`
	Sync          SyncConfig          `mapstructure:"sync"`
	StateStorage  StateStorage        `mapstructure:"state_storage"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// SafetyCultureConfig holds connection details for the remote audit API.
type SafetyCultureConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIToken   string `mapstructure:"api_token"`
	TemplateID string `mapstructure:"template_id"`
	Timeout    string `mapstructure:"timeout"`
}

func (c SafetyCultureConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

type SyncConfig struct {
	Mode               string                `mapstructure:"mode"` // incremental|full
	PageSize           int                   `mapstructure:"page_size"`
	WarrantyPeriodDays int                   `mapstructure:"warranty_period_days"`
	SerialPrefixRules  map[string]SerialRule `mapstructure:"serial_prefix_rules"`
	Labels             LabelsConfig          `mapstructure:"labels"`
}

// SerialRule maps a unit serial prefix to a model-number slice length and a
// warranty period in whole years.
type SerialRule struct {
	Length   int `mapstructure:"length"`
	Warranty int `mapstructure:"warranty"`
}

// LabelsConfig lists the candidate answer labels per derived field.
// Candidates are tried in order; the first label present in the audit wins.
type LabelsConfig struct {
	AuditDate  []string `mapstructure:"audit_date"`
	UnitSN     []string `mapstructure:"unit_sn"`
	UMSSN      []string `mapstructure:"ums_sn"`
	TMDeviceID []string `mapstructure:"tm_device_id"`
}

type StateStorage struct {
	Type     string `mapstructure:"type"` // mysql|sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	FilePath string `mapstructure:"file_path"` // For SQLite
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	AuthToken    string `mapstructure:"auth_token"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
