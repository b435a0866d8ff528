package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/storage"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	constraintActiveBooking = "bookings_one_active_per_slot"
	constraintBookingSlot   = "bookings_slot_id_fkey"
)

// mapError translates driver errors into domain errors and wraps the rest with op.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			if pqErr.Constraint == constraintActiveBooking {
				return booking.ErrDuplicateBooking
			}
		case codeForeignKeyViolation:
			if pqErr.Constraint == constraintBookingSlot {
				return booking.ErrUnknownSlot
			}
			return fmt.Errorf("%s: %w", op, storage.ErrUnknownUser)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
