// Package seed provisions training type reference data at startup.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/fitbot/core/bootstrap"
	"github.com/m3rciful/fitbot/core/logger"
	"github.com/m3rciful/fitbot/internal/model"
)

// Catalog is the write side the seeder needs.
type Catalog interface {
	UpsertTrainingType(ctx context.Context, t model.TrainingType) (model.TrainingType, error)
}

// TrainingType is one configured catalog entry.
type TrainingType struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	NominalCapacity int    `yaml:"nominal_capacity"`
}

// Validate rejects blank names, non-positive capacities and duplicate names.
func Validate(types []TrainingType) error {
	seen := make(map[string]struct{}, len(types))
	for i, t := range types {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("catalog[%d].name is required", i)
		}
		if t.NominalCapacity <= 0 {
			return fmt.Errorf("catalog[%d].nominal_capacity must be > 0", i)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("catalog[%d].name %q is duplicated", i, name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// CatalogSeeder upserts every configured type by name. Running it twice is a no-op.
func CatalogSeeder(types []TrainingType) bootstrap.Seeder[Catalog] {
	return bootstrap.SeederFunc[Catalog]{
		Label: "catalog",
		Fn: func(ctx context.Context, c Catalog) error {
			if err := Validate(types); err != nil {
				return err
			}
			for _, t := range types {
				stored, err := c.UpsertTrainingType(ctx, model.TrainingType{
					Name:            strings.TrimSpace(t.Name),
					Description:     strings.TrimSpace(t.Description),
					NominalCapacity: t.NominalCapacity,
				})
				if err != nil {
					return fmt.Errorf("upsert training type %q: %w", t.Name, err)
				}
				logger.SEED.Debug("training type",
					slog.String("event", "seed.item"),
					slog.Int64("training_type_id", stored.ID),
					slog.String("name", stored.Name),
					slog.Int("limit", stored.NominalCapacity),
				)
			}
			return nil
		},
	}
}
