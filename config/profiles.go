package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LoadProfile returns the built-in configuration of a named profile with
// .env and environment overrides applied.
func LoadProfile(name string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadProfileWithFile layers a config file over a named profile.
func LoadProfileWithFile(name, path string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	return LoadFromFileOver(cfg, path)
}

// LoadAuto picks the profile from ECOREWARDS_PROFILE (falling back to ECOREWARDS_ENV, then
// development) and layers ECOREWARDS_CONFIG_FILE over it when set.
func LoadAuto() (*Config, error) {
	name := os.Getenv("ECOREWARDS_PROFILE")
	if name == "" {
		name = os.Getenv("ECOREWARDS_ENV")
	}
	if name == "" {
		name = string(EnvDevelopment)
	}
	if path := os.Getenv("ECOREWARDS_CONFIG_FILE"); path != "" {
		return LoadProfileWithFile(name, filepath.Clean(path))
	}
	return LoadProfile(name)
}

func profile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name
	switch Environment(name) {
	case EnvDevelopment:
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Rewards.SeedDemo = true
	case EnvTesting:
		cfg.Environment = EnvTesting
		cfg.Server.Address = ":0"
		cfg.Logging.Level = "warn"
		cfg.Rewards.SweepInterval = time.Second
	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = "redis"
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
		cfg.Rewards.Dispatch = "async"
	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.Server.CORSOrigin = ""
		cfg.Storage.Adapter = "sql"
		cfg.Logging.Level = "info"
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.RequestsPerMinute = 120
		cfg.Security.RateLimit.BurstSize = 20
		cfg.Rewards.Dispatch = "async"
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}
