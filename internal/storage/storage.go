// Package storage declares the persistence surface shared by the memory and
// PostgreSQL backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/subscription"
)

var (
	// ErrUnknownTrainingType is returned for a training type id that does not exist.
	ErrUnknownTrainingType = errors.New("unknown training type")
	// ErrUnknownUser is returned when a record refers to an unregistered user.
	ErrUnknownUser = errors.New("unknown user")
)

// Users stores chat users.
type Users interface {
	GetUser(ctx context.Context, id int64) (model.User, bool, error)
	// UpsertUser creates the user or updates contact fields, keeping RegisteredAt.
	UpsertUser(ctx context.Context, u model.User) (model.User, error)
}

// Subscriptions stores membership records.
type Subscriptions interface {
	subscription.Reader
	// SetSubscription creates or overwrites the user's subscription.
	SetSubscription(ctx context.Context, sub model.Subscription) error
}

// Catalog is the read side used for menus plus the provisioning writes.
type Catalog interface {
	ListTrainingTypes(ctx context.Context) ([]model.TrainingType, error)
	GetTrainingType(ctx context.Context, id int64) (model.TrainingType, bool, error)
	// UpsertTrainingType creates or updates a type matched by name.
	UpsertTrainingType(ctx context.Context, t model.TrainingType) (model.TrainingType, error)
	// ListTrainingOptions lists types with open future slots ordered by next start.
	// typeID 0 means every type.
	ListTrainingOptions(ctx context.Context, typeID int64, now time.Time) ([]model.TrainingOption, error)
	// ListOpenSlots lists future slots with capacity left, earliest first. typeID 0 means every type.
	ListOpenSlots(ctx context.Context, typeID int64, now time.Time) ([]model.SlotView, error)
	// GetSlot returns booking.ErrUnknownSlot for a missing slot.
	GetSlot(ctx context.Context, id int64) (model.SlotView, error)
	// AddSlot inserts one schedule row with full capacity.
	AddSlot(ctx context.Context, typeID int64, start time.Time) (model.ScheduleSlot, error)
}

// Backend is everything the application needs from one storage engine.
type Backend interface {
	booking.Store
	Users
	Subscriptions
	Catalog
}
