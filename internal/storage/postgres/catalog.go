package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/storage"
)

const slotViewSelect = `
	SELECT s.id, s.training_type_id, s.start_time, s.remaining_capacity,
	       t.name AS training_name, t.nominal_capacity
	FROM schedule_slots AS s
	JOIN training_types AS t ON t.id = s.training_type_id`

func (c *conn) ListTrainingTypes(ctx context.Context) ([]model.TrainingType, error) {
	var out []model.TrainingType
	err := sqlx.SelectContext(ctx, c.q, &out, `
		SELECT id, name, description, nominal_capacity FROM training_types ORDER BY id`)
	if err != nil {
		return nil, mapError("list training types", err)
	}
	return out, nil
}

func (c *conn) GetTrainingType(ctx context.Context, id int64) (model.TrainingType, bool, error) {
	var t model.TrainingType
	err := sqlx.GetContext(ctx, c.q, &t, `
		SELECT id, name, description, nominal_capacity FROM training_types WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrainingType{}, false, nil
	}
	if err != nil {
		return model.TrainingType{}, false, mapError("get training type", err)
	}
	return t, true, nil
}

// UpsertTrainingType matches by name. Lowering the capacity does not touch
// slots that already exist.
func (c *conn) UpsertTrainingType(ctx context.Context, t model.TrainingType) (model.TrainingType, error) {
	if t.Name == "" || t.NominalCapacity <= 0 {
		return model.TrainingType{}, fmt.Errorf("training type needs a name and positive capacity")
	}
	var out model.TrainingType
	err := sqlx.GetContext(ctx, c.q, &out, `
		INSERT INTO training_types (name, description, nominal_capacity)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description, nominal_capacity = EXCLUDED.nominal_capacity
		RETURNING id, name, description, nominal_capacity`,
		t.Name, t.Description, t.NominalCapacity)
	if err != nil {
		return model.TrainingType{}, mapError("upsert training type", err)
	}
	return out, nil
}

func (c *conn) ListTrainingOptions(ctx context.Context, typeID int64, now time.Time) ([]model.TrainingOption, error) {
	var out []model.TrainingOption
	err := sqlx.SelectContext(ctx, c.q, &out, `
		SELECT t.id, t.name, t.description, t.nominal_capacity,
		       min(s.start_time) AS next_start, count(*) AS open_slots
		FROM training_types AS t
		JOIN schedule_slots AS s ON s.training_type_id = t.id
		WHERE s.remaining_capacity > 0
		  AND s.start_time > $1
		  AND ($2::bigint = 0 OR t.id = $2::bigint)
		GROUP BY t.id
		ORDER BY next_start, t.id`, now, typeID)
	if err != nil {
		return nil, mapError("list training options", err)
	}
	return out, nil
}

func (c *conn) ListOpenSlots(ctx context.Context, typeID int64, now time.Time) ([]model.SlotView, error) {
	var out []model.SlotView
	err := sqlx.SelectContext(ctx, c.q, &out, slotViewSelect+`
		WHERE s.remaining_capacity > 0
		  AND s.start_time > $1
		  AND ($2::bigint = 0 OR s.training_type_id = $2::bigint)
		ORDER BY s.start_time, s.id`, now, typeID)
	if err != nil {
		return nil, mapError("list open slots", err)
	}
	return out, nil
}

func (c *conn) GetSlot(ctx context.Context, id int64) (model.SlotView, error) {
	var v model.SlotView
	err := sqlx.GetContext(ctx, c.q, &v, slotViewSelect+` WHERE s.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SlotView{}, booking.ErrUnknownSlot
	}
	if err != nil {
		return model.SlotView{}, mapError("get slot", err)
	}
	return v, nil
}

func (c *conn) AddSlot(ctx context.Context, typeID int64, start time.Time) (model.ScheduleSlot, error) {
	var sl model.ScheduleSlot
	err := sqlx.GetContext(ctx, c.q, &sl, `
		INSERT INTO schedule_slots (training_type_id, start_time, remaining_capacity)
		SELECT id, $2, nominal_capacity FROM training_types WHERE id = $1
		RETURNING id, training_type_id, start_time, remaining_capacity`, typeID, start)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduleSlot{}, fmt.Errorf("add slot: %w", storage.ErrUnknownTrainingType)
	}
	if err != nil {
		return model.ScheduleSlot{}, mapError("add slot", err)
	}
	return sl, nil
}
