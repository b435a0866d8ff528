// Package app loads the fitbot configuration and wires storage, the booking
// engine, the conversation machine and the Telegram runtime together.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/fitbot/core/cache"
	"github.com/m3rciful/fitbot/core/cmd"
	coreconfig "github.com/m3rciful/fitbot/core/config"
	coredatabase "github.com/m3rciful/fitbot/core/database"
	"github.com/m3rciful/fitbot/internal/seed"
)

const (
	// StoragePostgres keeps users, schedule and bookings in PostgreSQL.
	StoragePostgres = "postgres"
	// StorageMemory keeps everything in process memory; state is lost on restart.
	StorageMemory = "memory"
)

// StorageConfig selects the durable backend.
type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"STORAGE_BACKEND"`
}

// MetricsConfig controls the ops HTTP endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the whole application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Redis    cache.Config        `yaml:"redis"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Catalog  []seed.TrainingType `yaml:"catalog"`

	// Timezone renders and parses schedule times, e.g. "Europe/Berlin".
	Timezone string `yaml:"timezone" envconfig:"FITBOT_TIMEZONE"`

	location *time.Location
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Location returns the resolved schedule time zone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// IdleTimeout is the configured session idle timeout.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutMinutes) * time.Minute
}

// Load decodes path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCarrier adapts Load to the runner.
func LoadCarrier(path string) (cmd.ConfigCarrier, error) {
	return Load(path)
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if backend == "" {
		backend = StoragePostgres
	}
	switch backend {
	case StoragePostgres:
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required when storage.backend is 'postgres'")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid storage.backend %q; allowed: postgres, memory", cfg.Storage.Backend)
	}
	cfg.Storage.Backend = backend

	if cfg.Session.Backend == coreconfig.SessionBackendRedis && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr is required when session.backend is 'redis'")
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "fitbot:session:"
	}

	cfg.location = time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		cfg.location = loc
	}

	return seed.Validate(cfg.Catalog)
}
