// Package bootstrap brings up shared infrastructure in a fixed order:
// logger, database with migrations, then Redis.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/fitbot/core/cache"
	coreconfig "github.com/m3rciful/fitbot/core/config"
	coredatabase "github.com/m3rciful/fitbot/core/database"
	"github.com/m3rciful/fitbot/core/logger"
)

// Options control the bootstrap pipeline. A nil Database or Redis skips that step.
type Options struct {
	Logging  coreconfig.LoggingConfig
	Database *coredatabase.Config
	Redis    *cache.Config

	LoggerInit   func(coreconfig.LoggingConfig) error
	Connect      func(coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(coredatabase.Config) error
	ConnectRedis func(cache.Config) (*redis.Client, error)
}

// Result exposes the infrastructure that was initialized.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Close releases every initialized connection.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run executes the pipeline. On failure everything opened so far is closed.
func Run(opts Options) (*Result, error) {
	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.Init
	}
	if err := loggerInit(opts.Logging); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	if opts.Database != nil {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(*opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(*opts.Database); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	if opts.Redis != nil {
		connect := opts.ConnectRedis
		if connect == nil {
			connect = cache.Connect
		}
		client, err := connect(*opts.Redis)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
		}
		res.Redis = client
	}
	return res, nil
}
