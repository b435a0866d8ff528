package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: abc\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.Session.Backend != SessionBackendMemory {
		t.Fatalf("session backend = %q, want memory", cfg.Session.Backend)
	}
	if cfg.Session.IdleTimeoutMinutes != DefaultSessionIdleMinutes {
		t.Fatalf("idle timeout = %d, want %d", cfg.Session.IdleTimeoutMinutes, DefaultSessionIdleMinutes)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: from-file\nsession:\n  backend: memory\n")
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("SESSION_BACKEND", "redis")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want from-env", cfg.Telegram.Token)
	}
	if cfg.Session.Backend != SessionBackendRedis {
		t.Fatalf("session backend = %q, want redis", cfg.Session.Backend)
	}
}

func TestNormalizeRejectsMissingToken(t *testing.T) {
	if err := Normalize(&Config{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNormalizeWebhookRequiresURL(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: "webhook"}}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected webhook validation error")
	}
}

func TestNormalizeRateLimit(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "x"},
		RateLimit: RateLimitConfig{IntervalMS: 500, ExcludeUpdates: []string{" Callback "}},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.RateLimit.Burst != 1 {
		t.Fatalf("burst = %d, want 1", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Fatalf("exclude = %q, want %q", cfg.RateLimit.ExcludeUpdates[0], UpdateCallback)
	}

	cfg.RateLimit.ExcludeUpdates = []string{"photo"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown update kind")
	}
}

func TestNormalizeRejectsUnknownSessionBackend(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "x"},
		Session:  SessionConfig{Backend: "etcd"},
	}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown session backend")
	}
}
