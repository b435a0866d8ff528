package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/model"
)

const bookingColumns = `b.id, b.user_id, b.slot_id, b.status, b.created_at`

const bookingViewSelect = `
	SELECT ` + bookingColumns + `, t.name AS training_name, s.start_time
	FROM bookings AS b
	JOIN schedule_slots AS s ON s.id = b.slot_id
	JOIN training_types AS t ON t.id = s.training_type_id`

func (c *conn) HasActiveBooking(ctx context.Context, userID, slotID int64) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, c.q, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM bookings WHERE user_id = $1 AND slot_id = $2 AND status = 'active'
		)`, userID, slotID)
	return ok, mapError("has active booking", err)
}

func (c *conn) CountActive(ctx context.Context, userID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, c.q, &n, `SELECT count(*) FROM bookings WHERE user_id = $1 AND status = 'active'`, userID)
	return n, mapError("count active", err)
}

func (c *conn) Insert(ctx context.Context, userID, slotID int64) (model.Booking, error) {
	var b model.Booking
	err := sqlx.GetContext(ctx, c.q, &b, `
		INSERT INTO bookings AS b (user_id, slot_id, status)
		VALUES ($1, $2, 'active')
		RETURNING `+bookingColumns, userID, slotID)
	if err != nil {
		return model.Booking{}, mapError("insert booking", err)
	}
	return b, nil
}

// Cancel flips the row only when it is active and owned by userID. Zero
// affected rows are explained by re-reading the booking.
func (c *conn) Cancel(ctx context.Context, bookingID, userID int64) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = now()
		WHERE id = $1 AND user_id = $2 AND status = 'active'`, bookingID, userID)
	if err != nil {
		return mapError("cancel booking", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return mapError("cancel booking", err)
	} else if n == 1 {
		return nil
	}

	b, err := c.GetByID(ctx, bookingID)
	switch {
	case err != nil:
		return err
	case b.UserID != userID:
		return booking.ErrNotOwner
	default:
		return booking.ErrAlreadyCancelled
	}
}

func (c *conn) ListByUser(ctx context.Context, userID int64) ([]model.BookingView, error) {
	var out []model.BookingView
	err := sqlx.SelectContext(ctx, c.q, &out, bookingViewSelect+`
		WHERE b.user_id = $1
		ORDER BY (b.status = 'active') DESC, s.start_time DESC, b.id DESC`, userID)
	if err != nil {
		return nil, mapError("list bookings", err)
	}
	return out, nil
}

// GetByID locks the row when called inside a transaction.
func (c *conn) GetByID(ctx context.Context, bookingID int64) (model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings AS b WHERE b.id = $1`
	if c.inTx {
		query += ` FOR UPDATE`
	}
	var b model.Booking
	err := sqlx.GetContext(ctx, c.q, &b, query, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, booking.ErrUnknownBooking
	}
	if err != nil {
		return model.Booking{}, mapError("get booking", err)
	}
	return b, nil
}

func (c *conn) GetView(ctx context.Context, bookingID int64) (model.BookingView, error) {
	var v model.BookingView
	err := sqlx.GetContext(ctx, c.q, &v, bookingViewSelect+` WHERE b.id = $1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BookingView{}, booking.ErrUnknownBooking
	}
	if err != nil {
		return model.BookingView{}, mapError("get booking view", err)
	}
	return v, nil
}
