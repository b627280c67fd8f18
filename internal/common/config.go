package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Backend     BackendConfig   `toml:"backend"`
	Tracking    TrackingConfig  `toml:"tracking"`
	Dashboard   DashboardConfig `toml:"dashboard"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// BackendConfig points at the remote NAV download backend.
type BackendConfig struct {
	BaseURL        string `toml:"base_url"`        // Backend API base URL
	APIKey         string `toml:"api_key"`         // Optional bearer token
	RequestTimeout string `toml:"request_timeout"` // e.g. "30s" - HTTP request timeout
	RateLimit      int    `toml:"rate_limit"`      // Max requests per second to the backend
}

// TrackingConfig controls job progress polling behavior.
type TrackingConfig struct {
	PollInterval          string `toml:"poll_interval"`            // e.g. "2s" - fixed polling interval
	MaxHistoricalSpanDays int    `toml:"max_historical_span_days"` // Maximum allowed historical date range
}

// DashboardConfig controls the composite dashboard refresh.
type DashboardConfig struct {
	RefreshCooldown string `toml:"refresh_cooldown"` // e.g. "5s" - minimum gap between refreshes
	HistoryLimit    int    `toml:"history_limit"`    // Max recent download records returned
}

// SchedulerConfig controls the automatic daily download.
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in navtrack.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:3000/api",
			RequestTimeout: "30s",
			RateLimit:      10,
		},
		Tracking: TrackingConfig{
			PollInterval:          "2s",
			MaxHistoricalSpanDays: 365,
		},
		Dashboard: DashboardConfig{
			RefreshCooldown: "5s",
			HistoryLimit:    50,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,           // Disabled by default - user must explicitly opt-in
			Schedule: "0 30 21 * * *", // 9:30pm daily, after AMFI publishes NAVs
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadConfig loads configuration in priority order:
// defaults -> TOML file (if present) -> environment variables.
func LoadConfig(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies NAVTRACK_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("NAVTRACK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("NAVTRACK_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("NAVTRACK_BACKEND_URL"); v != "" {
		config.Backend.BaseURL = v
	}
	if v := os.Getenv("NAVTRACK_BACKEND_API_KEY"); v != "" {
		config.Backend.APIKey = v
	}
	if v := os.Getenv("NAVTRACK_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("NAVTRACK_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func validateConfig(config *Config) error {
	if config.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if _, err := time.ParseDuration(config.Backend.RequestTimeout); err != nil {
		return fmt.Errorf("invalid backend.request_timeout %q: %w", config.Backend.RequestTimeout, err)
	}
	if _, err := time.ParseDuration(config.Tracking.PollInterval); err != nil {
		return fmt.Errorf("invalid tracking.poll_interval %q: %w", config.Tracking.PollInterval, err)
	}
	if _, err := time.ParseDuration(config.Dashboard.RefreshCooldown); err != nil {
		return fmt.Errorf("invalid dashboard.refresh_cooldown %q: %w", config.Dashboard.RefreshCooldown, err)
	}
	if config.Tracking.MaxHistoricalSpanDays <= 0 {
		return fmt.Errorf("tracking.max_historical_span_days must be positive")
	}
	return nil
}

// RequestTimeoutDuration returns the parsed backend request timeout.
func (c *BackendConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// PollInterval returns the parsed polling interval.
// Config is validated at load time; the zero fallback guards hand-built configs.
func (c *TrackingConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// RefreshCooldownDuration returns the parsed dashboard refresh cooldown.
func (c *DashboardConfig) RefreshCooldownDuration() time.Duration {
	d, err := time.ParseDuration(c.RefreshCooldown)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
