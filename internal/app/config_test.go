package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/fitbot/core/config"
	"github.com/m3rciful/fitbot/internal/seed"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sample = `
telegram:
  token: abc
  admin_id: 7
storage:
  backend: memory
session:
  idle_timeout_minutes: 45
timezone: Europe/Berlin
catalog:
  - name: Yoga
    description: Morning flow
    nominal_capacity: 12
  - name: Boxing
    nominal_capacity: 8
`

func TestLoadAppConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "abc" || cfg.Telegram.AdminID != 7 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Storage.Backend != StorageMemory {
		t.Fatalf("storage = %q", cfg.Storage.Backend)
	}
	if cfg.IdleTimeout() != 45*time.Minute {
		t.Fatalf("idle = %v", cfg.IdleTimeout())
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Fatalf("location = %v", cfg.Location())
	}
	if len(cfg.Catalog) != 2 || cfg.Catalog[0].NominalCapacity != 12 {
		t.Fatalf("catalog = %+v", cfg.Catalog)
	}
	if cfg.CoreConfig().Session.Backend != coreconfig.SessionBackendMemory {
		t.Fatalf("session backend = %q", cfg.CoreConfig().Session.Backend)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DB_HOST", "db.local")
	t.Setenv("DB_NAME", "fitbot")
	t.Setenv("METRICS_LISTEN", ":9100")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != StoragePostgres || cfg.Database.Host != "db.local" || cfg.Database.Port != "5432" {
		t.Fatalf("database = %+v / %+v", cfg.Storage, cfg.Database)
	}
	if cfg.Metrics.Listen != ":9100" {
		t.Fatalf("metrics = %q", cfg.Metrics.Listen)
	}
}

func TestNormalizeRejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			Config:  coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "x"}},
			Storage: StorageConfig{Backend: StorageMemory},
		}
	}
	cases := map[string]func(*Config){
		"postgres without host": func(c *Config) { c.Storage.Backend = StoragePostgres },
		"unknown storage":       func(c *Config) { c.Storage.Backend = "sqlite" },
		"redis without addr":    func(c *Config) { c.Session.Backend = coreconfig.SessionBackendRedis },
		"bad timezone":          func(c *Config) { c.Timezone = "Mars/Olympus" },
		"bad catalog":           func(c *Config) { c.Catalog = []seed.TrainingType{{Name: "Yoga"}} },
		"missing token":         func(c *Config) { c.Telegram.Token = "" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		if err := Normalize(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
