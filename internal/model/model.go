// Package model holds the persisted records of the booking domain.
package model

import (
	"fmt"
	"strings"
	"time"
)

// User is a chat user known to the bot. Identity is the Telegram user id.
type User struct {
	ID             int64     `db:"id"`
	DisplayName    string    `db:"display_name"`
	Phone          string    `db:"phone"`
	ExternalHandle string    `db:"external_handle"`
	RegisteredAt   time.Time `db:"registered_at"`
}

// TrainingType is static reference data: what is trained and how many people fit.
type TrainingType struct {
	ID              int64  `db:"id"`
	Name            string `db:"name"`
	Description     string `db:"description"`
	NominalCapacity int    `db:"nominal_capacity"`
}

// ScheduleSlot is one dated occurrence of a training type.
type ScheduleSlot struct {
	ID                int64     `db:"id"`
	TrainingTypeID    int64     `db:"training_type_id"`
	StartTime         time.Time `db:"start_time"`
	RemainingCapacity int       `db:"remaining_capacity"`
}

// Past reports whether the slot has already started at now.
func (s ScheduleSlot) Past(now time.Time) bool {
	return !s.StartTime.After(now)
}

// SlotView is a slot joined with its training type for menus and confirmations.
type SlotView struct {
	ScheduleSlot
	TrainingName    string `db:"training_name"`
	NominalCapacity int    `db:"nominal_capacity"`
}

// TrainingOption summarises a training type that still has bookable dates.
type TrainingOption struct {
	TrainingType
	NextStart time.Time `db:"next_start"`
	OpenSlots int       `db:"open_slots"`
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingActive    BookingStatus = "active"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a reservation of one slot by one user. Rows are never deleted.
type Booking struct {
	ID        int64         `db:"id"`
	UserID    int64         `db:"user_id"`
	SlotID    int64         `db:"slot_id"`
	Status    BookingStatus `db:"status"`
	CreatedAt time.Time     `db:"created_at"`
}

// Active reports whether the booking still holds capacity.
func (b Booking) Active() bool { return b.Status == BookingActive }

// BookingView is a booking joined with its slot and training for listings.
type BookingView struct {
	Booking
	TrainingName string    `db:"training_name"`
	StartTime    time.Time `db:"start_time"`
}

// Cancellable reports whether the user may still cancel the booking at now.
func (v BookingView) Cancellable(now time.Time) bool {
	return v.Active() && v.StartTime.After(now)
}

// Tier is a membership class.
type Tier string

const (
	TierNone    Tier = "none"
	TierTrial   Tier = "trial"
	TierPremium Tier = "premium"
)

// ParseTier accepts a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierNone, TierTrial, TierPremium:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q; allowed: none, trial, premium", s)
	}
}

// Subscription is the per-user membership record.
type Subscription struct {
	UserID      int64     `db:"user_id"`
	Tier        Tier      `db:"tier"`
	PurchasedAt time.Time `db:"purchased_at"`
}
