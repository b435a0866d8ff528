// Package booking reserves and releases schedule slots while keeping capacity,
// duplicate and quota rules intact.
package booking

import (
	"context"

	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/subscription"
)

// SlotStore is the capacity counter of schedule slots.
type SlotStore interface {
	// GetCapacity returns the remaining capacity or ErrUnknownSlot.
	GetCapacity(ctx context.Context, slotID int64) (int, error)
	// Decrement takes one unit in a single conditional step. It returns
	// ErrSlotFull when nothing is left and ErrUnknownSlot for a missing slot.
	Decrement(ctx context.Context, slotID int64) error
	// Increment returns one unit, clamped at the nominal capacity.
	Increment(ctx context.Context, slotID int64) error
}

// Ledger is the set of booking records.
type Ledger interface {
	HasActiveBooking(ctx context.Context, userID, slotID int64) (bool, error)
	CountActive(ctx context.Context, userID int64) (int, error)
	// Insert creates an active booking. A concurrent active duplicate yields ErrDuplicateBooking.
	Insert(ctx context.Context, userID, slotID int64) (model.Booking, error)
	// Cancel flips an active booking owned by userID to cancelled.
	Cancel(ctx context.Context, bookingID, userID int64) error
	// ListByUser returns active bookings first, then by slot time, newest first.
	ListByUser(ctx context.Context, userID int64) ([]model.BookingView, error)
	GetByID(ctx context.Context, bookingID int64) (model.Booking, error)
	GetView(ctx context.Context, bookingID int64) (model.BookingView, error)
}

// Tx is the view of the store inside one transaction. Subscription reads go
// through the transaction too, so a reservation never needs a second connection.
type Tx interface {
	SlotStore
	Ledger
	subscription.Reader
	// LockUser serialises quota checks of one user until the transaction ends.
	LockUser(ctx context.Context, userID int64) error
}

// Store is a transactional SlotStore plus Ledger. Methods called on the Store
// itself run outside any transaction.
type Store interface {
	Tx
	// WithinTx runs fn atomically: every mutation lands when fn returns nil, none otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Policy resolves a user's tier and quota from subscriptions read through r.
type Policy interface {
	QuotaWith(ctx context.Context, r subscription.Reader, userID int64) (model.Tier, subscription.Quota, error)
}
