package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/fitbot/core/cache"
	coreconfig "github.com/m3rciful/fitbot/core/config"
	coredatabase "github.com/m3rciful/fitbot/core/database"
)

func noLogger(coreconfig.LoggingConfig) error { return nil }

func TestRunSkipsUnconfiguredSteps(t *testing.T) {
	res, err := Run(Options{
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not run without database config")
			return nil, nil
		},
		ConnectRedis: func(cache.Config) (*redis.Client, error) {
			t.Fatal("redis must not run without redis config")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != nil || res.Redis != nil {
		t.Fatalf("unexpected infrastructure: %+v", res)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRunPropagatesFailures(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(Options{
		LoggerInit:   noLogger,
		Redis:        &cache.Config{Addr: "localhost:6379"},
		ConnectRedis: func(cache.Config) (*redis.Client, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	_, err = Run(Options{LoggerInit: func(coreconfig.LoggingConfig) error { return boom }})
	if !errors.Is(err, boom) {
		t.Fatalf("logger err = %v", err)
	}
}

func TestRunSeedersStopsOnError(t *testing.T) {
	var order []string
	ok := SeederFunc[*[]string]{Label: "a", Fn: func(_ context.Context, s *[]string) error {
		*s = append(*s, "a")
		return nil
	}}
	bad := SeederFunc[*[]string]{Label: "b", Fn: func(context.Context, *[]string) error { return errors.New("fail") }}
	never := SeederFunc[*[]string]{Label: "c", Fn: func(_ context.Context, s *[]string) error {
		*s = append(*s, "c")
		return nil
	}}

	err := RunSeeders[*[]string](context.Background(), &order, ok, bad, never)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 1 || order[0] != "a" {
		t.Fatalf("order = %v", order)
	}
}
