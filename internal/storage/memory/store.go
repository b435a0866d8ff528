// Package memory is an in-process storage backend. All booking mutations are
// serialised by one mutex, which makes every transaction trivially isolated.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/storage"
)

// Store keeps every record in maps. The zero value is not usable; call New.
//
// Lock order is mu before refMu. mu guards slots and bookings; refMu guards
// users, subscriptions and training types so policy reads inside a
// transaction do not deadlock.
type Store struct {
	mu       sync.Mutex
	slots    map[int64]model.ScheduleSlot
	bookings map[int64]model.Booking
	nextSlot int64
	nextBook int64

	refMu    sync.RWMutex
	users    map[int64]model.User
	subs     map[int64]model.Subscription
	types    map[int64]model.TrainingType
	nextType int64

	now   func() time.Time
	fault func(op string) error
}

var _ storage.Backend = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		slots:    make(map[int64]model.ScheduleSlot),
		bookings: make(map[int64]model.Booking),
		users:    make(map[int64]model.User),
		subs:     make(map[int64]model.Subscription),
		types:    make(map[int64]model.TrainingType),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetFault installs a hook consulted before each mutation ("decrement",
// "increment", "insert", "cancel"). A non-nil result fails that mutation.
func (s *Store) SetFault(fn func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *Store) check(op string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op)
}

// journal collects undo steps of one transaction.
type journal struct{ undo []func() }

func (j *journal) add(fn func()) {
	if j != nil {
		j.undo = append(j.undo, fn)
	}
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// tx is the booking.Tx handed to WithinTx callbacks while mu is held.
type tx struct {
	s *Store
	j *journal
}

// WithinTx runs fn under the store lock and undoes its mutations when fn fails or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(booking.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
	}()
	if err = fn(&tx{s: s, j: j}); err != nil {
		j.rollback()
	}
	return err
}

func (t *tx) LockUser(context.Context, int64) error { return nil }

func (t *tx) GetCapacity(_ context.Context, slotID int64) (int, error) {
	return t.s.capacity(slotID)
}

func (t *tx) Decrement(_ context.Context, slotID int64) error {
	return t.s.decrement(t.j, slotID)
}

func (t *tx) Increment(_ context.Context, slotID int64) error {
	return t.s.increment(t.j, slotID)
}

func (t *tx) HasActiveBooking(_ context.Context, userID, slotID int64) (bool, error) {
	return t.s.hasActive(userID, slotID), nil
}

func (t *tx) CountActive(_ context.Context, userID int64) (int, error) {
	return t.s.countActive(userID), nil
}

func (t *tx) Insert(_ context.Context, userID, slotID int64) (model.Booking, error) {
	return t.s.insert(t.j, userID, slotID)
}

func (t *tx) Cancel(_ context.Context, bookingID, userID int64) error {
	return t.s.cancel(t.j, bookingID, userID)
}

func (t *tx) ListByUser(_ context.Context, userID int64) ([]model.BookingView, error) {
	return t.s.listByUser(userID), nil
}

func (t *tx) GetSubscription(ctx context.Context, userID int64) (model.Subscription, bool, error) {
	return t.s.GetSubscription(ctx, userID)
}

func (t *tx) GetByID(_ context.Context, bookingID int64) (model.Booking, error) {
	return t.s.getBooking(bookingID)
}

func (t *tx) GetView(_ context.Context, bookingID int64) (model.BookingView, error) {
	return t.s.getView(bookingID)
}

// Methods on Store auto-commit each call.

func (s *Store) LockUser(context.Context, int64) error { return nil }

func (s *Store) GetCapacity(_ context.Context, slotID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity(slotID)
}

func (s *Store) Decrement(_ context.Context, slotID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrement(nil, slotID)
}

func (s *Store) Increment(_ context.Context, slotID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increment(nil, slotID)
}

func (s *Store) HasActiveBooking(_ context.Context, userID, slotID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasActive(userID, slotID), nil
}

func (s *Store) CountActive(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActive(userID), nil
}

func (s *Store) Insert(_ context.Context, userID, slotID int64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(nil, userID, slotID)
}

func (s *Store) Cancel(_ context.Context, bookingID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel(nil, bookingID, userID)
}

func (s *Store) ListByUser(_ context.Context, userID int64) ([]model.BookingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listByUser(userID), nil
}

func (s *Store) GetByID(_ context.Context, bookingID int64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBooking(bookingID)
}

func (s *Store) GetView(_ context.Context, bookingID int64) (model.BookingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getView(bookingID)
}

// The helpers below expect mu to be held.

func (s *Store) capacity(slotID int64) (int, error) {
	slot, ok := s.slots[slotID]
	if !ok {
		return 0, booking.ErrUnknownSlot
	}
	return slot.RemainingCapacity, nil
}

func (s *Store) decrement(j *journal, slotID int64) error {
	slot, ok := s.slots[slotID]
	if !ok {
		return booking.ErrUnknownSlot
	}
	if slot.RemainingCapacity <= 0 {
		return booking.ErrSlotFull
	}
	if err := s.check("decrement"); err != nil {
		return err
	}
	prev := slot
	slot.RemainingCapacity--
	s.slots[slotID] = slot
	j.add(func() { s.slots[slotID] = prev })
	return nil
}

func (s *Store) increment(j *journal, slotID int64) error {
	slot, ok := s.slots[slotID]
	if !ok {
		return booking.ErrUnknownSlot
	}
	if err := s.check("increment"); err != nil {
		return err
	}
	s.refMu.RLock()
	nominal := s.types[slot.TrainingTypeID].NominalCapacity
	s.refMu.RUnlock()

	prev := slot
	slot.RemainingCapacity = min(slot.RemainingCapacity+1, nominal)
	s.slots[slotID] = slot
	j.add(func() { s.slots[slotID] = prev })
	return nil
}

func (s *Store) hasActive(userID, slotID int64) bool {
	for _, b := range s.bookings {
		if b.UserID == userID && b.SlotID == slotID && b.Active() {
			return true
		}
	}
	return false
}

func (s *Store) countActive(userID int64) int {
	n := 0
	for _, b := range s.bookings {
		if b.UserID == userID && b.Active() {
			n++
		}
	}
	return n
}

func (s *Store) insert(j *journal, userID, slotID int64) (model.Booking, error) {
	if _, ok := s.slots[slotID]; !ok {
		return model.Booking{}, booking.ErrUnknownSlot
	}
	s.refMu.RLock()
	_, known := s.users[userID]
	s.refMu.RUnlock()
	if !known {
		return model.Booking{}, fmt.Errorf("insert booking for %d: %w", userID, storage.ErrUnknownUser)
	}
	if s.hasActive(userID, slotID) {
		return model.Booking{}, booking.ErrDuplicateBooking
	}
	if err := s.check("insert"); err != nil {
		return model.Booking{}, err
	}
	s.nextBook++
	b := model.Booking{
		ID:        s.nextBook,
		UserID:    userID,
		SlotID:    slotID,
		Status:    model.BookingActive,
		CreatedAt: s.now(),
	}
	s.bookings[b.ID] = b
	j.add(func() { delete(s.bookings, b.ID) })
	return b, nil
}

func (s *Store) cancel(j *journal, bookingID, userID int64) error {
	b, ok := s.bookings[bookingID]
	switch {
	case !ok:
		return booking.ErrUnknownBooking
	case b.UserID != userID:
		return booking.ErrNotOwner
	case !b.Active():
		return booking.ErrAlreadyCancelled
	}
	if err := s.check("cancel"); err != nil {
		return err
	}
	prev := b
	b.Status = model.BookingCancelled
	s.bookings[bookingID] = b
	j.add(func() { s.bookings[bookingID] = prev })
	return nil
}

func (s *Store) getBooking(bookingID int64) (model.Booking, error) {
	b, ok := s.bookings[bookingID]
	if !ok {
		return model.Booking{}, booking.ErrUnknownBooking
	}
	return b, nil
}

func (s *Store) view(b model.Booking) model.BookingView {
	slot := s.slots[b.SlotID]
	s.refMu.RLock()
	name := s.types[slot.TrainingTypeID].Name
	s.refMu.RUnlock()
	return model.BookingView{Booking: b, TrainingName: name, StartTime: slot.StartTime}
}

func (s *Store) getView(bookingID int64) (model.BookingView, error) {
	b, err := s.getBooking(bookingID)
	if err != nil {
		return model.BookingView{}, err
	}
	return s.view(b), nil
}

func (s *Store) listByUser(userID int64) []model.BookingView {
	var out []model.BookingView
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, s.view(b))
		}
	}
	slices.SortFunc(out, compareBookingViews)
	return out
}

// compareBookingViews orders active before cancelled, then newest slot first.
func compareBookingViews(a, b model.BookingView) int {
	if a.Active() != b.Active() {
		if a.Active() {
			return -1
		}
		return 1
	}
	if c := b.StartTime.Compare(a.StartTime); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// Users and subscriptions.

func (s *Store) GetUser(_ context.Context, id int64) (model.User, bool, error) {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *Store) UpsertUser(_ context.Context, u model.User) (model.User, error) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if prev, ok := s.users[u.ID]; ok {
		u.RegisteredAt = prev.RegisteredAt
	} else if u.RegisteredAt.IsZero() {
		u.RegisteredAt = s.now()
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetSubscription(_ context.Context, userID int64) (model.Subscription, bool, error) {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	sub, ok := s.subs[userID]
	return sub, ok, nil
}

func (s *Store) SetSubscription(_ context.Context, sub model.Subscription) error {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if _, ok := s.users[sub.UserID]; !ok {
		return fmt.Errorf("set subscription for %d: %w", sub.UserID, storage.ErrUnknownUser)
	}
	if sub.PurchasedAt.IsZero() {
		sub.PurchasedAt = s.now()
	}
	s.subs[sub.UserID] = sub
	return nil
}

// Catalog.

func (s *Store) ListTrainingTypes(context.Context) ([]model.TrainingType, error) {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	out := make([]model.TrainingType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b model.TrainingType) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetTrainingType(_ context.Context, id int64) (model.TrainingType, bool, error) {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	t, ok := s.types[id]
	return t, ok, nil
}

func (s *Store) UpsertTrainingType(_ context.Context, t model.TrainingType) (model.TrainingType, error) {
	if strings.TrimSpace(t.Name) == "" || t.NominalCapacity <= 0 {
		return model.TrainingType{}, fmt.Errorf("training type needs a name and positive capacity")
	}
	s.refMu.Lock()
	defer s.refMu.Unlock()
	for id, existing := range s.types {
		if existing.Name == t.Name {
			t.ID = id
			s.types[id] = t
			return t, nil
		}
	}
	s.nextType++
	t.ID = s.nextType
	s.types[t.ID] = t
	return t, nil
}

func (s *Store) ListTrainingOptions(ctx context.Context, typeID int64, now time.Time) ([]model.TrainingOption, error) {
	slots, err := s.ListOpenSlots(ctx, typeID, now)
	if err != nil {
		return nil, err
	}
	byType := make(map[int64]*model.TrainingOption)
	var order []int64
	s.refMu.RLock()
	for _, sl := range slots {
		opt, ok := byType[sl.TrainingTypeID]
		if !ok {
			opt = &model.TrainingOption{TrainingType: s.types[sl.TrainingTypeID], NextStart: sl.StartTime}
			byType[sl.TrainingTypeID] = opt
			order = append(order, sl.TrainingTypeID)
		}
		opt.OpenSlots++
	}
	s.refMu.RUnlock()

	out := make([]model.TrainingOption, 0, len(order))
	for _, id := range order {
		out = append(out, *byType[id])
	}
	return out, nil
}

func (s *Store) ListOpenSlots(_ context.Context, typeID int64, now time.Time) ([]model.SlotView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SlotView
	for _, sl := range s.slots {
		if sl.RemainingCapacity <= 0 || sl.Past(now) || (typeID != 0 && sl.TrainingTypeID != typeID) {
			continue
		}
		out = append(out, s.slotView(sl))
	}
	slices.SortFunc(out, func(a, b model.SlotView) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetSlot(_ context.Context, id int64) (model.SlotView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return model.SlotView{}, booking.ErrUnknownSlot
	}
	return s.slotView(sl), nil
}

func (s *Store) slotView(sl model.ScheduleSlot) model.SlotView {
	s.refMu.RLock()
	t := s.types[sl.TrainingTypeID]
	s.refMu.RUnlock()
	return model.SlotView{ScheduleSlot: sl, TrainingName: t.Name, NominalCapacity: t.NominalCapacity}
}

func (s *Store) AddSlot(_ context.Context, typeID int64, start time.Time) (model.ScheduleSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refMu.RLock()
	t, ok := s.types[typeID]
	s.refMu.RUnlock()
	if !ok {
		return model.ScheduleSlot{}, fmt.Errorf("add slot: %w", storage.ErrUnknownTrainingType)
	}
	s.nextSlot++
	sl := model.ScheduleSlot{
		ID:                s.nextSlot,
		TrainingTypeID:    typeID,
		StartTime:         start,
		RemainingCapacity: t.NominalCapacity,
	}
	s.slots[sl.ID] = sl
	return sl, nil
}
