package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// GatewayConfig points the sync engine at the workspace proxy.
type GatewayConfig struct {
	// BaseURL is the root URL of the proxy (e.g., http://localhost:5050).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every individual HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// ProbeIntervalSec is how often connectivity is re-checked.
	ProbeIntervalSec int `mapstructure:"probe_interval_sec" yaml:"probe_interval_sec"`
}

// StoreConfig locates the local database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SyncConfig tunes retry behavior for records stuck in the error state.
type SyncConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseBackoffSec int `mapstructure:"base_backoff_sec" yaml:"base_backoff_sec"`
	MaxBackoffSec  int `mapstructure:"max_backoff_sec" yaml:"max_backoff_sec"`
}

// ArchiveConfig controls the start-up archival sweep.
type ArchiveConfig struct {
	// AfterDays is how many calendar days past its due date a completed
	// task stays active.
	AfterDays int `mapstructure:"after_days" yaml:"after_days"`
}

// HabitsConfig controls automatic habit submission.
type HabitsConfig struct {
	// SubmitAt is the HH:MM local time checked habits are submitted.
	SubmitAt string `mapstructure:"submit_at" yaml:"submit_at"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Habits  HabitsConfig  `mapstructure:"habits" yaml:"habits"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// envPrefix namespaces environment overrides, e.g. EFFICIO_GATEWAY_BASE_URL.
const envPrefix = "EFFICIO"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/efficio/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDataDir returns the directory holding the database and logs.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "efficio")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "efficio")
}

func setDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()
	v.SetDefault("gateway.base_url", "http://localhost:5050")
	v.SetDefault("gateway.timeout_sec", 30)
	v.SetDefault("gateway.probe_interval_sec", 15)
	v.SetDefault("store.path", filepath.Join(dataDir, "efficio.db"))
	v.SetDefault("sync.max_attempts", 5)
	v.SetDefault("sync.base_backoff_sec", 30)
	v.SetDefault("sync.max_backoff_sec", 3600)
	v.SetDefault("archive.after_days", 5)
	v.SetDefault("habits.submit_at", "00:00")
	v.SetDefault("log.path", filepath.Join(dataDir, "efficio.log"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first, and EFFICIO_*
// environment variables override file values. A missing config file is
// not an error.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.MaxAttempts <= 0 {
		cfg.Sync.MaxAttempts = 5
	}
	if cfg.Archive.AfterDays <= 0 {
		cfg.Archive.AfterDays = 5
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("gateway", cfg.Gateway)
	v.Set("store", cfg.Store)
	v.Set("sync", cfg.Sync)
	v.Set("archive", cfg.Archive)
	v.Set("habits", cfg.Habits)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
