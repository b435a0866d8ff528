package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/m3rciful/fitbot/core/bootstrap"
	"github.com/m3rciful/fitbot/core/cmd"
	coreconfig "github.com/m3rciful/fitbot/core/config"
	"github.com/m3rciful/fitbot/core/logger"
	tg "github.com/m3rciful/fitbot/core/telegram"
	"github.com/m3rciful/fitbot/core/telegram/helpers"
	"github.com/m3rciful/fitbot/core/telegram/sender"
	"github.com/m3rciful/fitbot/core/telegram/state"
	"github.com/m3rciful/fitbot/internal/bot"
	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/conversation"
	"github.com/m3rciful/fitbot/internal/metrics"
	"github.com/m3rciful/fitbot/internal/seed"
	"github.com/m3rciful/fitbot/internal/storage"
	"github.com/m3rciful/fitbot/internal/storage/memory"
	"github.com/m3rciful/fitbot/internal/storage/postgres"
	"github.com/m3rciful/fitbot/internal/subscription"
)

// App is a fully wired bot process.
type App struct {
	cfg   *Config
	infra *bootstrap.Result

	Backend    storage.Backend
	Engine     *booking.Engine
	Machine    *conversation.Machine
	Bot        *bot.Bot
	Registry   *tg.Registry
	Dispatcher *sender.Dispatcher
	Metrics    *metrics.Collector
	Gatherer   prometheus.Gatherer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options overrides infrastructure steps, mainly for tests.
type Options struct {
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
}

// Bootstrap matches cmd.Options.Bootstrap.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg, Options{})
}

// New brings up infrastructure and builds every component. Background work
// is bound to ctx and stopped by Close.
func New(ctx context.Context, cfg *Config, opts Options) (*App, error) {
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}

	bo := bootstrap.Options{Logging: cfg.Logging}
	if cfg.Storage.Backend == StoragePostgres {
		db := cfg.Database
		bo.Database = &db
	}
	if cfg.Session.Backend == coreconfig.SessionBackendRedis {
		rc := cfg.Redis
		bo.Redis = &rc
	}
	infra, err := run(bo)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &App{cfg: cfg, infra: infra, cancel: cancel}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	if a.infra.DB != nil {
		a.Backend = postgres.New(a.infra.DB)
	} else {
		a.Backend = memory.New()
		logger.Warn(ctx, logger.CompApp, "storage",
			slog.String("mode", StorageMemory),
			slog.String("reason", "bookings are lost on restart"),
		)
	}
	if err := bootstrap.RunSeeders[seed.Catalog](ctx, a.Backend, seed.CatalogSeeder(cfg.Catalog)); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewCollector(reg)
	a.Gatherer = reg

	policy := subscription.NewPolicy(a.Backend)
	a.Engine = booking.NewEngine(a.Backend, policy, booking.WithRecorder(a.Metrics))

	var err error
	a.Machine, err = conversation.New(conversation.Config{
		Sessions:    a.sessions(ctx),
		Catalog:     a.Backend,
		Users:       a.Backend,
		Bookings:    a.Engine,
		Policy:      policy,
		IdleTimeout: cfg.IdleTimeout(),
		Observer:    a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	a.Dispatcher = sender.NewDispatcher(sender.Options{})
	a.Metrics.RegisterSender(a.Dispatcher)

	a.Bot, err = bot.New(bot.Options{
		Conversation: a.Machine,
		Admin:        a.Backend,
		Sender:       helpers.NewSender(a.Dispatcher),
		Location:     cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Registry = tg.NewRegistry()
	if err := a.Bot.Register(a.Registry); err != nil {
		return fmt.Errorf("app: register handlers: %w", err)
	}

	if cfg.Metrics.Listen != "" {
		a.serveMetrics(ctx)
	}
	return nil
}

// sessions picks the session store. Stored sessions outlive the idle timeout
// so an expired one can still be recognised and reported.
func (a *App) sessions(ctx context.Context) state.Store {
	idle := a.cfg.IdleTimeout()
	retention := 2 * idle
	if a.infra.Redis != nil {
		return state.NewRedisStore(a.infra.Redis, a.cfg.Redis.KeyPrefix, retention)
	}
	store := state.NewMemoryStore(retention)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		store.RunSweeper(ctx, idle)
	}()
	return store
}

func (a *App) serveMetrics(ctx context.Context) {
	checks := map[string]metrics.HealthCheck{}
	if db := a.infra.DB; db != nil {
		checks["db"] = db.PingContext
	}
	if rc := a.infra.Redis; rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}
	h := metrics.Router(a.Gatherer, checks)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := metrics.Serve(ctx, a.cfg.Metrics.Listen, h); err != nil {
			logger.Error(ctx, logger.CompMetrics, "serve", slog.String("status", "fail"), logger.Err(err))
		}
	}()
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.Bot == nil || a.Registry == nil {
		return tg.RunOptions{}, errors.New("app: not built")
	}
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:     core,
		Registry:   a.Registry,
		Dispatcher: a.Dispatcher,
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareOptions{
			OnLimited: a.Bot.OnLimited,
			Observe:   a.Metrics.ObserveUpdate,
		}),
		Routes: a.Bot.Routes(a.Registry, core.Telegram.AdminID),
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			logger.Info(ctx, logger.CompApp, "start",
				slog.String("mode", core.Telegram.RunMode),
				slog.String("db", a.cfg.Storage.Backend),
				slog.String("session_backend", core.Session.Backend),
			)
			return nil
		},
	}, nil
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn(context.Background(), logger.CompApp, "close",
			slog.String("status", "fail"),
			slog.String("reason", "background work did not stop"),
		)
	}
	return a.infra.Close()
}

// Compile-time checks against the runner contracts.
var (
	_ cmd.ConfigCarrier = (*Config)(nil)
	_ cmd.TelegramApp   = (*App)(nil)
)
