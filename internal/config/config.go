package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Setting keys for runtime overrides stored in the settings table.
// A configured setting takes precedence over the static config value.
const (
	SettingIMAPServer   = "imap_server"
	SettingIMAPPort     = "imap_port"
	SettingIMAPEmail    = "imap_email"
	SettingIMAPPassword = "imap_password"
	SettingIMAPUseSSL   = "imap_use_ssl"

	SettingTelegramToken  = "telegram_bot_token"
	SettingTelegramChatID = "telegram_chat_id"

	SettingScanInterval = "scan_interval_minutes"
	SettingDueDays      = "default_due_days"

	SettingTriggerWords     = "trigger_words"
	SettingMarketingFilters = "marketing_filters"
)

// IMAPConfig holds the mailbox connection settings.
type IMAPConfig struct {
	Server   string `mapstructure:"server" yaml:"server"`
	Port     string `mapstructure:"port" yaml:"port"`
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"password"`
	UseSSL   bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// TelegramConfig holds the notification bot settings.
type TelegramConfig struct {
	Token  string `mapstructure:"token" yaml:"token"`
	ChatID string `mapstructure:"chat_id" yaml:"chat_id"`
}

// ScanConfig holds the scheduler and task-creation defaults.
type ScanConfig struct {
	// IntervalMinutes is how often the scheduler runs a scan.
	IntervalMinutes int `mapstructure:"interval_minutes" yaml:"interval_minutes"`

	// DueDays is the offset added to the email date to compute a new
	// task's due date.
	DueDays int `mapstructure:"due_days" yaml:"due_days"`
}

// DatabaseConfig holds the sqlite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP     IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Scan     ScanConfig     `mapstructure:"scan" yaml:"scan"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskflow/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskflow", "config.yaml")
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		IMAP: IMAPConfig{
			Port:   "993",
			UseSSL: true,
		},
		Scan: ScanConfig{
			IntervalMinutes: 5,
			DueDays:         3,
		},
		Database: DatabaseConfig{
			Path: "taskflow.db",
		},
	}
}

// Load reads configuration from the given YAML file path using Viper,
// with TASKFLOW_* environment variables overriding file values. If the
// file does not exist, defaults plus environment are returned.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.use_ssl", true)
	v.SetDefault("scan.interval_minutes", 5)
	v.SetDefault("scan.due_days", 3)
	v.SetDefault("database.path", "taskflow.db")

	v.SetEnvPrefix("taskflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Scan.IntervalMinutes < 1 {
		cfg.Scan.IntervalMinutes = 5
	}
	if cfg.Scan.DueDays < 0 {
		cfg.Scan.DueDays = 3
	}

	return cfg, nil
}
