package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/fitbot/core/logger"
)

// Seeder loads reference data into storage S.
type Seeder[S any] interface {
	Name() string
	Seed(ctx context.Context, storage S) error
}

// SeederFunc adapts a function to Seeder.
type SeederFunc[S any] struct {
	Label string
	Fn    func(ctx context.Context, storage S) error
}

// Name returns the seeder label used in logs.
func (f SeederFunc[S]) Name() string { return f.Label }

// Seed calls the wrapped function.
func (f SeederFunc[S]) Seed(ctx context.Context, storage S) error { return f.Fn(ctx, storage) }

// RunSeeders applies seeders in order and stops at the first failure.
func RunSeeders[S any](ctx context.Context, storage S, seeders ...Seeder[S]) error {
	for _, s := range seeders {
		start := time.Now()
		if err := s.Seed(ctx, storage); err != nil {
			logger.SEED.Error("seed failed",
				slog.String("event", "seed"),
				slog.String("op", s.Name()),
				logger.Err(err),
			)
			return fmt.Errorf("seed %s: %w", s.Name(), err)
		}
		logger.SEED.Info("seeded",
			slog.String("event", "seed"),
			slog.String("op", s.Name()),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return nil
}
