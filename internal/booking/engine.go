package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/fitbot/core/logger"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/subscription"
)

// Recorder receives one observation per engine call. The outcome is the
// failure kind name, or "ok".
type Recorder interface {
	ObserveReserve(outcome string, took time.Duration)
	ObserveRelease(outcome string, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReserve(string, time.Duration) {}
func (nopRecorder) ObserveRelease(string, time.Duration) {}

// Option customises an Engine.
type Option func(*Engine)

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

// Engine applies Reserve and Release as single transactions over a Store.
type Engine struct {
	store  Store
	policy Policy
	rec    Recorder
}

// NewEngine wires an engine over store, consulting policy for quotas.
func NewEngine(store Store, policy Policy, opts ...Option) *Engine {
	e := &Engine{store: store, policy: policy, rec: nopRecorder{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reserve books slotID for userID. Duplicate and quota checks run before the
// capacity decrement so a rejected request leaves the slot untouched. The
// decrement and the ledger insert commit together or not at all.
func (e *Engine) Reserve(ctx context.Context, userID, slotID int64) (model.Booking, error) {
	start := time.Now()
	var booked model.Booking
	var tier model.Tier

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		dup, err := tx.HasActiveBooking(ctx, userID, slotID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateBooking
		}

		var quota subscription.Quota
		tier, quota, err = e.policy.QuotaWith(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !quota.Unlimited() {
			active, err := tx.CountActive(ctx, userID)
			if err != nil {
				return err
			}
			if !quota.Allows(active) {
				return &Error{Kind: KindQuotaExceeded, Err: fmt.Errorf("tier %s allows %d active, holds %d", tier, quota.MaxActive, active)}
			}
		}

		if err := tx.Decrement(ctx, slotID); err != nil {
			return err
		}
		// A failed insert aborts the transaction, which restores the decremented unit.
		booked, err = tx.Insert(ctx, userID, slotID)
		return err
	})
	err = wrap("reserve", err)

	kind := KindOf(err)
	e.rec.ObserveReserve(kind.String(), time.Since(start))
	logOutcome(ctx, "reserve", start, err,
		slog.Int64("slot_id", slotID),
		slog.Int64("booking_id", booked.ID),
		slog.String("tier", string(tier)),
	)
	if err != nil {
		return model.Booking{}, err
	}
	return booked, nil
}

// Release cancels bookingID on behalf of userID and restocks its slot. The
// returned view is read after commit and only feeds the confirmation.
func (e *Engine) Release(ctx context.Context, userID, bookingID int64) (model.BookingView, error) {
	start := time.Now()
	var released model.Booking

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		b, err := tx.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		switch {
		case b.UserID != userID:
			return ErrNotOwner
		case !b.Active():
			return ErrAlreadyCancelled
		}
		if err := tx.Cancel(ctx, b.ID, userID); err != nil {
			return err
		}
		if err := tx.Increment(ctx, b.SlotID); err != nil {
			return err
		}
		released = b
		released.Status = model.BookingCancelled
		return nil
	})
	err = wrap("release", err)

	e.rec.ObserveRelease(KindOf(err).String(), time.Since(start))
	logOutcome(ctx, "release", start, err,
		slog.Int64("booking_id", bookingID),
		slog.Int64("slot_id", released.SlotID),
	)
	if err != nil {
		return model.BookingView{}, err
	}

	view, verr := e.store.GetView(ctx, bookingID)
	if verr != nil {
		logger.Warn(ctx, logger.CompBooking, "release.view", slog.Int64("booking_id", bookingID), logger.Err(verr))
		return model.BookingView{Booking: released}, nil
	}
	return view, nil
}

// ListBookings returns the user's bookings, active first, newest slot first.
func (e *Engine) ListBookings(ctx context.Context, userID int64) ([]model.BookingView, error) {
	views, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, wrap("list bookings", err)
	}
	return views, nil
}

// CountActive returns how many active bookings the user holds.
func (e *Engine) CountActive(ctx context.Context, userID int64) (int, error) {
	n, err := e.store.CountActive(ctx, userID)
	if err != nil {
		return 0, wrap("count active", err)
	}
	return n, nil
}

// wrap tags err with op and maps storage failures outside the taxonomy to KindInternal.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return E(op, KindNone, err)
}

func logOutcome(ctx context.Context, op string, start time.Time, err error, attrs ...slog.Attr) {
	kind := KindOf(err)
	status := "ok"
	level := slog.LevelInfo
	switch kind {
	case KindNone:
	case KindInternal:
		status = "fail"
		level = slog.LevelError
	default:
		status = "rejected"
	}
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("outcome", status),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		attrs = append(attrs, slog.String("err_code", kind.Code()), logger.Err(err))
	}
	logger.Event(ctx, logger.CompBooking, level, op, attrs...)
}
