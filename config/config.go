package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ecorewards/adapters/mongo"
	"ecorewards/adapters/redis"
	"ecorewards/adapters/sqlx"
	"ecorewards/analytics"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" yaml:"environment" env:"ECOREWARDS_ENV"`
	Profile     string      `json:"profile" yaml:"profile" env:"ECOREWARDS_PROFILE"`

	Server        ServerConfig        `json:"server" yaml:"server"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	Rewards       RewardsConfig       `json:"rewards" yaml:"rewards"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Metrics       MetricsConfig       `json:"metrics" yaml:"metrics"`
	Analytics     analytics.Config    `json:"analytics" yaml:"analytics"`
	Security      SecurityConfig      `json:"security" yaml:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" env:"ECOREWARDS_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"ECOREWARDS_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" yaml:"cors_origin" env:"ECOREWARDS_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"ECOREWARDS_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"ECOREWARDS_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"ECOREWARDS_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"ECOREWARDS_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"ECOREWARDS_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" yaml:"adapter" env:"ECOREWARDS_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" yaml:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty" yaml:"sql,omitempty"`
	Mongo   mongo.Config `json:"mongo,omitempty" yaml:"mongo,omitempty"`
	File    FileConfig   `json:"file,omitempty" yaml:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" yaml:"path" env:"ECOREWARDS_STORAGE_FILE_PATH"`
}

// RewardsConfig tunes the rewards engine.
type RewardsConfig struct {
	PointsPerLevel int64         `json:"points_per_level" yaml:"points_per_level" env:"ECOREWARDS_REWARDS_POINTS_PER_LEVEL"`
	MaxLevel       int64         `json:"max_level" yaml:"max_level" env:"ECOREWARDS_REWARDS_MAX_LEVEL"`
	MaxActivities  int           `json:"max_activities" yaml:"max_activities" env:"ECOREWARDS_REWARDS_MAX_ACTIVITIES"`
	SeedDemo       bool          `json:"seed_demo" yaml:"seed_demo" env:"ECOREWARDS_REWARDS_SEED_DEMO"`
	SweepInterval  time.Duration `json:"sweep_interval" yaml:"sweep_interval" env:"ECOREWARDS_REWARDS_SWEEP_INTERVAL"`
	// Dispatch is "sync" or "async".
	Dispatch string `json:"dispatch" yaml:"dispatch" env:"ECOREWARDS_REWARDS_DISPATCH"`
}

// NotificationsConfig lists outbound event sinks.
type NotificationsConfig struct {
	Webhooks       []string      `json:"webhooks,omitempty" yaml:"webhooks,omitempty" env:"ECOREWARDS_NOTIFY_WEBHOOKS"`
	WebhookEvents  []string      `json:"webhook_events,omitempty" yaml:"webhook_events,omitempty" env:"ECOREWARDS_NOTIFY_WEBHOOK_EVENTS"`
	WebhookTimeout time.Duration `json:"webhook_timeout" yaml:"webhook_timeout" env:"ECOREWARDS_NOTIFY_WEBHOOK_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" env:"ECOREWARDS_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"ECOREWARDS_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"ECOREWARDS_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" env:"ECOREWARDS_LOG_ATTRIBUTES"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" env:"ECOREWARDS_METRICS_ENABLED"`
	Address       string `json:"address" yaml:"address" env:"ECOREWARDS_METRICS_ADDR"`
	Path          string `json:"path" yaml:"path" env:"ECOREWARDS_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" yaml:"collect_system" env:"ECOREWARDS_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"ECOREWARDS_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" env:"ECOREWARDS_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" env:"ECOREWARDS_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size" env:"ECOREWARDS_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"ECOREWARDS_SECURITY_RATE_LIMIT_CLEANUP"`
}

// Load loads configuration from .env and environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()
	return finish(cfg)
}

// finish applies .env and environment overrides, then validates.
func finish(cfg *Config) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads ECOREWARDS_DOTENV (default ".env") when present.
// Variables already in the environment win.
func loadDotEnv() error {
	path := os.Getenv("ECOREWARDS_DOTENV")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && !isYAML(cleanPath) {
		return errors.New("config file must have .json, .yaml or .yml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFileOver(DefaultConfig(), path)
}

// LoadFromFileOver decodes path on top of base, then applies .env and environment overrides.
func LoadFromFileOver(base *Config, path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := base
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return finish(cfg)
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(),
			Mongo:   mongo.DefaultConfig(),
			File: FileConfig{
				Path: "./data/ecorewards.json",
			},
		},
		Rewards: RewardsConfig{
			PointsPerLevel: 100,
			MaxLevel:       50,
			MaxActivities:  200,
			SeedDemo:       false,
			SweepInterval:  30 * time.Second,
			Dispatch:       "sync",
		},
		Notifications: NotificationsConfig{
			WebhookTimeout: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Address:       ":9090",
			Path:          "/metrics",
			CollectSystem: true,
		},
		Analytics: analytics.DefaultConfig(),
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Rewards.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("rewards config: %v", err))
	}

	if err := c.Notifications.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notifications config: %v", err))
	}

	// sinks run inside the engine lock under sync dispatch
	if len(c.Notifications.Webhooks) > 0 && c.Rewards.Dispatch == "sync" {
		errs = append(errs, "notifications config: webhooks require rewards dispatch async")
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("metrics config: %v", err))
	}

	if err := validateAnalytics(c.Analytics); err != nil {
		errs = append(errs, fmt.Sprintf("analytics config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Storage.Mongo.URI != "" {
		cfg.Storage.Mongo.URI = "[REDACTED]"
	}
	if len(cfg.Analytics.Exporters) > 0 {
		exporters := make([]analytics.ExporterConfig, len(cfg.Analytics.Exporters))
		copy(exporters, cfg.Analytics.Exporters)
		for i := range exporters {
			if exporters[i].APIKey != "" {
				exporters[i].APIKey = "[REDACTED]"
			}
		}
		cfg.Analytics.Exporters = exporters
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
