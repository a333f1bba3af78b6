package config

import (
	"fmt"
	"sort"
	"time"

	"ratekit/adapters/sqlx"
)

// profiles maps a profile name to a constructor of its base configuration.
var profiles = map[string]func() *Config{
	"development": developmentProfile,
	"testing":     testingProfile,
	"staging":     stagingProfile,
	"production":  productionProfile,
}

// Profiles lists the known profile names.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfile returns the named profile with environment overrides applied.
func LoadProfile(name string) (*Config, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (known: %v)", name, Profiles())
	}
	cfg := p()
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s profile: %w", name, err)
	}
	return cfg, nil
}

func developmentProfile() *Config {
	cfg := DefaultConfig()
	cfg.Profile = "development"
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	cfg.Storage.Adapter = "file"
	return cfg
}

func testingProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvTesting
	cfg.Profile = "testing"
	cfg.Logging.Level = "warn"
	cfg.Storage.Adapter = "memory"
	// short criteria so end-to-end checks reach the prompt quickly
	cfg.Prompt.MinInstallDays = 1
	cfg.Prompt.MinLaunches = 3
	return cfg
}

func stagingProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvStaging
	cfg.Profile = "staging"
	cfg.Storage.Adapter = "redis"
	cfg.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverPostgres)
	cfg.Security.EnableRateLimit = true
	return cfg
}

func productionProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvProduction
	cfg.Profile = "production"
	cfg.Server.CORSOrigin = ""
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 5 * time.Second
	cfg.Logging.Level = "info"
	cfg.Storage.Adapter = "redis"
	cfg.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverPostgres)
	cfg.Security.EnableRateLimit = true
	cfg.Security.RateLimit.RequestsPerMinute = 120
	cfg.Security.RateLimit.BurstSize = 20
	return cfg
}
