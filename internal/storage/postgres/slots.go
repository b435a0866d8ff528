package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/fitbot/internal/booking"
)

func (c *conn) GetCapacity(ctx context.Context, slotID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, c.q, &n, `SELECT remaining_capacity FROM schedule_slots WHERE id = $1`, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, booking.ErrUnknownSlot
	}
	return n, mapError("get capacity", err)
}

// Decrement is a single conditional update; a concurrent caller on the last
// unit either wins the row or sees zero rows affected.
func (c *conn) Decrement(ctx context.Context, slotID int64) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE schedule_slots
		SET remaining_capacity = remaining_capacity - 1
		WHERE id = $1 AND remaining_capacity > 0`, slotID)
	if err != nil {
		return mapError("decrement", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return mapError("decrement", err)
	} else if n == 1 {
		return nil
	}
	if _, err := c.GetCapacity(ctx, slotID); err != nil {
		return err
	}
	return booking.ErrSlotFull
}

// Increment restocks one unit, never above the nominal capacity of the type.
func (c *conn) Increment(ctx context.Context, slotID int64) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE schedule_slots AS s
		SET remaining_capacity = LEAST(s.remaining_capacity + 1, t.nominal_capacity)
		FROM training_types AS t
		WHERE s.id = $1 AND t.id = s.training_type_id`, slotID)
	if err != nil {
		return mapError("increment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("increment", err)
	}
	if n == 0 {
		return booking.ErrUnknownSlot
	}
	return nil
}
