package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/storage"
	"github.com/m3rciful/fitbot/internal/storage/memory"
	"github.com/m3rciful/fitbot/internal/subscription"
)

type fixture struct {
	store  *memory.Store
	engine *booking.Engine
	rec    *countingRecorder
	typeID int64
}

type countingRecorder struct {
	mu      sync.Mutex
	reserve map[string]int
	release map[string]int
}

func (r *countingRecorder) ObserveReserve(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reserve[outcome]++
}

func (r *countingRecorder) ObserveRelease(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release[outcome]++
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	store := memory.New()
	tt, err := store.UpsertTrainingType(context.Background(), model.TrainingType{Name: "Yoga", NominalCapacity: capacity})
	if err != nil {
		t.Fatalf("upsert type: %v", err)
	}
	rec := &countingRecorder{reserve: map[string]int{}, release: map[string]int{}}
	return &fixture{
		store:  store,
		engine: booking.NewEngine(store, subscription.NewPolicy(store), booking.WithRecorder(rec)),
		rec:    rec,
		typeID: tt.ID,
	}
}

func (f *fixture) slot(t *testing.T) int64 {
	t.Helper()
	s, err := f.store.AddSlot(context.Background(), f.typeID, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("add slot: %v", err)
	}
	return s.ID
}

func (f *fixture) user(t *testing.T, id int64, tier model.Tier) int64 {
	t.Helper()
	ctx := context.Background()
	if _, err := f.store.UpsertUser(ctx, model.User{ID: id, DisplayName: fmt.Sprintf("user%d", id)}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if err := f.store.SetSubscription(ctx, model.Subscription{UserID: id, Tier: tier}); err != nil {
		t.Fatalf("set subscription: %v", err)
	}
	return id
}

func (f *fixture) remaining(t *testing.T, slotID int64) int {
	t.Helper()
	n, err := f.store.GetCapacity(context.Background(), slotID)
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	return n
}

func (f *fixture) activeOnSlot(t *testing.T, slotID int64, users ...int64) int {
	t.Helper()
	n := 0
	for _, u := range users {
		ok, err := f.store.HasActiveBooking(context.Background(), u, slotID)
		if err != nil {
			t.Fatalf("has active: %v", err)
		}
		if ok {
			n++
		}
	}
	return n
}

func wantKind(t *testing.T, err error, kind booking.Kind) {
	t.Helper()
	if got := booking.KindOf(err); got != kind {
		t.Fatalf("kind = %s (err %v), want %s", got, err, kind)
	}
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	s := f.slot(t)
	a, b, c := f.user(t, 1, model.TierTrial), f.user(t, 2, model.TierTrial), f.user(t, 3, model.TierTrial)

	bookingA, err := f.engine.Reserve(ctx, a, s)
	if err != nil {
		t.Fatalf("reserve A: %v", err)
	}
	if got := f.remaining(t, s); got != 1 {
		t.Fatalf("remaining after A = %d, want 1", got)
	}
	if _, err := f.engine.Reserve(ctx, b, s); err != nil {
		t.Fatalf("reserve B: %v", err)
	}
	if got := f.remaining(t, s); got != 0 {
		t.Fatalf("remaining after B = %d, want 0", got)
	}
	_, err = f.engine.Reserve(ctx, c, s)
	wantKind(t, err, booking.KindSlotFull)
	if !errors.Is(err, booking.ErrSlotFull) {
		t.Fatalf("errors.Is(%v, ErrSlotFull) = false", err)
	}

	view, err := f.engine.Release(ctx, a, bookingA.ID)
	if err != nil {
		t.Fatalf("release A: %v", err)
	}
	if view.Status != model.BookingCancelled || view.TrainingName != "Yoga" {
		t.Fatalf("released view = %+v", view)
	}
	if got := f.remaining(t, s); got != 1 {
		t.Fatalf("remaining after release = %d, want 1", got)
	}
	if _, err := f.engine.Reserve(ctx, c, s); err != nil {
		t.Fatalf("reserve C: %v", err)
	}
	if got := f.remaining(t, s); got != 0 {
		t.Fatalf("remaining after C = %d, want 0", got)
	}
	if got := f.rec.reserve["slot_full"]; got != 1 {
		t.Fatalf("recorded slot_full = %d, want 1", got)
	}
	if got := f.rec.reserve["ok"]; got != 3 {
		t.Fatalf("recorded ok = %d, want 3", got)
	}
}

func TestCapacityConservation(t *testing.T) {
	ctx := context.Background()
	const capacity = 3
	f := newFixture(t, capacity)
	s := f.slot(t)
	users := []int64{
		f.user(t, 1, model.TierPremium), f.user(t, 2, model.TierPremium),
		f.user(t, 3, model.TierPremium), f.user(t, 4, model.TierPremium),
	}

	held := map[int64]int64{}
	steps := []struct {
		user    int64
		release bool
	}{
		{1, false}, {2, false}, {3, false}, {4, false}, {2, true}, {4, false},
		{1, true}, {1, true}, {3, true}, {2, false}, {4, true}, {1, false},
	}
	for i, step := range steps {
		if step.release {
			_, _ = f.engine.Release(ctx, step.user, held[step.user])
		} else if b, err := f.engine.Reserve(ctx, step.user, s); err == nil {
			held[step.user] = b.ID
		}
		remaining := f.remaining(t, s)
		active := f.activeOnSlot(t, s, users...)
		if remaining < 0 || remaining > capacity {
			t.Fatalf("step %d: remaining %d out of [0,%d]", i, remaining, capacity)
		}
		if remaining+active != capacity {
			t.Fatalf("step %d: remaining %d + active %d != %d", i, remaining, active, capacity)
		}
	}
}

func TestNoOversellUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	s := f.slot(t)

	const k = 32
	for i := int64(1); i <= k; i++ {
		f.user(t, i, model.TierTrial)
	}

	var wg sync.WaitGroup
	results := make(chan error, k)
	for i := int64(1); i <= k; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := f.engine.Reserve(ctx, user, s)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	ok, full := 0, 0
	for err := range results {
		switch booking.KindOf(err) {
		case booking.KindNone:
			ok++
		case booking.KindSlotFull:
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || full != k-1 {
		t.Fatalf("ok=%d full=%d, want 1 and %d", ok, full, k-1)
	}
	if got := f.remaining(t, s); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}

func TestDuplicatePrevention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	s := f.slot(t)
	u := f.user(t, 1, model.TierPremium)

	if _, err := f.engine.Reserve(ctx, u, s); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	before := f.remaining(t, s)
	_, err := f.engine.Reserve(ctx, u, s)
	wantKind(t, err, booking.KindDuplicateBooking)
	if got := f.remaining(t, s); got != before {
		t.Fatalf("remaining changed by duplicate: %d -> %d", before, got)
	}
}

func TestQuotaEnforcement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	s1, s2 := f.slot(t), f.slot(t)
	trial := f.user(t, 1, model.TierTrial)
	premium := f.user(t, 2, model.TierPremium)

	for _, u := range []int64{trial, premium} {
		if _, err := f.engine.Reserve(ctx, u, s1); err != nil {
			t.Fatalf("reserve s1 for %d: %v", u, err)
		}
	}

	before := f.remaining(t, s2)
	_, err := f.engine.Reserve(ctx, trial, s2)
	wantKind(t, err, booking.KindQuotaExceeded)
	if got := f.remaining(t, s2); got != before {
		t.Fatalf("quota rejection changed capacity: %d -> %d", before, got)
	}

	if _, err := f.engine.Reserve(ctx, premium, s2); err != nil {
		t.Fatalf("premium reserve s2: %v", err)
	}
}

func TestQuotaAppliesWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	s1, s2 := f.slot(t), f.slot(t)
	if _, err := f.store.UpsertUser(ctx, model.User{ID: 99, DisplayName: "walk-in"}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	if _, err := f.engine.Reserve(ctx, 99, s1); err != nil {
		t.Fatalf("reserve s1: %v", err)
	}
	_, err := f.engine.Reserve(ctx, 99, s2)
	wantKind(t, err, booking.KindQuotaExceeded)
}

func TestUnknownUserCannotBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	s := f.slot(t)

	_, err := f.engine.Reserve(ctx, 424242, s)
	wantKind(t, err, booking.KindInternal)
	if !errors.Is(err, storage.ErrUnknownUser) {
		t.Fatalf("err = %v, want ErrUnknownUser", err)
	}
	if got := f.remaining(t, s); got != 2 {
		t.Fatalf("remaining = %d, want 2", got)
	}
}

func TestQuotaHoldsUnderConcurrentReserves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	u := f.user(t, 1, model.TierTrial)

	const k = 8
	slots := make([]int64, k)
	for i := range slots {
		slots[i] = f.slot(t)
	}

	var wg sync.WaitGroup
	results := make(chan error, k)
	for _, s := range slots {
		wg.Add(1)
		go func(slotID int64) {
			defer wg.Done()
			_, err := f.engine.Reserve(ctx, u, slotID)
			results <- err
		}(s)
	}
	wg.Wait()
	close(results)

	ok, quota := 0, 0
	for err := range results {
		switch booking.KindOf(err) {
		case booking.KindNone:
			ok++
		case booking.KindQuotaExceeded:
			quota++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || quota != k-1 {
		t.Fatalf("ok=%d quota=%d, want 1 and %d", ok, quota, k-1)
	}
	if n, _ := f.store.CountActive(ctx, u); n != 1 {
		t.Fatalf("active = %d, want 1", n)
	}
}

// unreachableReader fails every read; an engine built over it must take
// subscriptions from the transaction instead.
type unreachableReader struct{}

func (unreachableReader) GetSubscription(context.Context, int64) (model.Subscription, bool, error) {
	return model.Subscription{}, false, errors.New("pool exhausted")
}

func TestReserveReadsSubscriptionInsideTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	s1, s2 := f.slot(t), f.slot(t)
	premium := f.user(t, 1, model.TierPremium)
	trial := f.user(t, 2, model.TierTrial)

	engine := booking.NewEngine(f.store, subscription.NewPolicy(unreachableReader{}))
	for _, s := range []int64{s1, s2} {
		if _, err := engine.Reserve(ctx, premium, s); err != nil {
			t.Fatalf("premium reserve %d: %v", s, err)
		}
	}
	if _, err := engine.Reserve(ctx, trial, s1); err != nil {
		t.Fatalf("trial reserve: %v", err)
	}
	_, err := engine.Reserve(ctx, trial, s2)
	wantKind(t, err, booking.KindQuotaExceeded)
}

func TestReleaseIdempotence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	s := f.slot(t)
	u := f.user(t, 1, model.TierTrial)

	b, err := f.engine.Reserve(ctx, u, s)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.engine.Release(ctx, u, b.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := f.remaining(t, s); got != 2 {
		t.Fatalf("remaining after release = %d, want 2", got)
	}
	got, err := f.store.GetByID(ctx, b.ID)
	if err != nil || got.Status != model.BookingCancelled {
		t.Fatalf("status = %q, err %v", got.Status, err)
	}

	_, err = f.engine.Release(ctx, u, b.ID)
	wantKind(t, err, booking.KindAlreadyCancelled)
	if got := f.remaining(t, s); got != 2 {
		t.Fatalf("remaining after replay = %d, want 2", got)
	}
}

func TestReleaseOwnershipGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	s := f.slot(t)
	owner, other := f.user(t, 1, model.TierTrial), f.user(t, 2, model.TierTrial)

	b, err := f.engine.Reserve(ctx, owner, s)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	_, err = f.engine.Release(ctx, other, b.ID)
	wantKind(t, err, booking.KindNotOwner)
	if got := f.remaining(t, s); got != 1 {
		t.Fatalf("remaining = %d, want 1", got)
	}
	if got, _ := f.store.GetByID(ctx, b.ID); !got.Active() {
		t.Fatal("booking should still be active")
	}
}

func TestUnknownReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	u := f.user(t, 1, model.TierPremium)

	_, err := f.engine.Reserve(ctx, u, 404)
	wantKind(t, err, booking.KindUnknownSlot)
	_, err = f.engine.Release(ctx, u, 404)
	wantKind(t, err, booking.KindUnknownBooking)
}

func TestReserveRollsBackDecrementWhenInsertFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	s := f.slot(t)
	u := f.user(t, 1, model.TierTrial)

	boom := errors.New("disk on fire")
	f.store.SetFault(func(op string) error {
		if op == "insert" {
			return boom
		}
		return nil
	})

	_, err := f.engine.Reserve(ctx, u, s)
	wantKind(t, err, booking.KindInternal)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped cause", err)
	}
	if got := f.remaining(t, s); got != 2 {
		t.Fatalf("remaining = %d, want 2 after rollback", got)
	}
	if n, _ := f.store.CountActive(ctx, u); n != 0 {
		t.Fatalf("active = %d, want 0", n)
	}

	f.store.SetFault(nil)
	if _, err := f.engine.Reserve(ctx, u, s); err != nil {
		t.Fatalf("reserve after fault cleared: %v", err)
	}
}

func TestReleaseRollsBackCancelWhenRestockFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	s := f.slot(t)
	u := f.user(t, 1, model.TierTrial)

	b, err := f.engine.Reserve(ctx, u, s)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	f.store.SetFault(func(op string) error {
		if op == "increment" {
			return errors.New("restock failed")
		}
		return nil
	})
	_, err = f.engine.Release(ctx, u, b.ID)
	wantKind(t, err, booking.KindInternal)

	got, _ := f.store.GetByID(ctx, b.ID)
	if !got.Active() {
		t.Fatal("booking should remain active after failed release")
	}
	if n := f.remaining(t, s); n != 1 {
		t.Fatalf("remaining = %d, want 1", n)
	}
	if f.rec.release["internal"] != 1 {
		t.Fatalf("release outcomes = %v", f.rec.release)
	}
}

func TestIncrementClampsAtNominal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	s := f.slot(t)
	if err := f.store.Increment(ctx, s); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got := f.remaining(t, s); got != 2 {
		t.Fatalf("remaining = %d, want clamp at 2", got)
	}
}

func TestListBookingsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	u := f.user(t, 1, model.TierPremium)

	base := time.Now().Add(time.Hour)
	var ids []int64
	for i := range 3 {
		sl, err := f.store.AddSlot(ctx, f.typeID, base.Add(time.Duration(i)*24*time.Hour))
		if err != nil {
			t.Fatalf("add slot: %v", err)
		}
		b, err := f.engine.Reserve(ctx, u, sl.ID)
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		ids = append(ids, b.ID)
	}
	// Cancel the latest one: it must sink below the active ones.
	if _, err := f.engine.Release(ctx, u, ids[2]); err != nil {
		t.Fatalf("release: %v", err)
	}

	views, err := f.engine.ListBookings(ctx, u)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int64{ids[1], ids[0], ids[2]}
	for i, v := range views {
		if v.ID != want[i] {
			t.Fatalf("order[%d] = %d, want %d (views %+v)", i, v.ID, want[i], views)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := booking.E("reserve", booking.KindNone, booking.ErrSlotFull)
	if err.Error() != "reserve: slot full" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if err.Code() != "SLOT_FULL" {
		t.Fatalf("Code() = %q", err.Code())
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if booking.KindOf(wrapped) != booking.KindSlotFull || !errors.Is(wrapped, booking.ErrSlotFull) {
		t.Fatalf("wrapped error lost its kind: %v", wrapped)
	}
	if booking.KindOf(errors.New("x")) != booking.KindInternal {
		t.Fatal("foreign errors should be internal")
	}
	if booking.KindOf(nil) != booking.KindNone {
		t.Fatal("nil should be KindNone")
	}
}
