package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/subscription"
)

// openTestStore recreates the schema on the database named by
// FITBOT_TEST_DATABASE_URL. The database is wiped.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FITBOT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FITBOT_TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, name := range []string{"000001_init.down.sql", "000001_init.up.sql"} {
		body, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if _, err := db.Exec(string(body)); err != nil {
			t.Fatalf("apply %s: %v", name, err)
		}
	}
	return New(db)
}

func seedSlot(t *testing.T, s *Store, capacity int) (model.TrainingType, model.ScheduleSlot) {
	t.Helper()
	ctx := context.Background()
	tt, err := s.UpsertTrainingType(ctx, model.TrainingType{Name: "Yoga", Description: "morning", NominalCapacity: capacity})
	if err != nil {
		t.Fatalf("upsert type: %v", err)
	}
	sl, err := s.AddSlot(ctx, tt.ID, time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("add slot: %v", err)
	}
	return tt, sl
}

func seedUser(t *testing.T, s *Store, id int64, tier model.Tier) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.UpsertUser(ctx, model.User{ID: id, DisplayName: "u"}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if err := s.SetSubscription(ctx, model.Subscription{UserID: id, Tier: tier}); err != nil {
		t.Fatalf("set subscription: %v", err)
	}
}

func TestPostgresReserveRelease(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, sl := seedSlot(t, s, 2)
	seedUser(t, s, 1, model.TierTrial)
	seedUser(t, s, 2, model.TierTrial)
	seedUser(t, s, 3, model.TierTrial)

	engine := booking.NewEngine(s, subscription.NewPolicy(s))
	a, err := engine.Reserve(ctx, 1, sl.ID)
	if err != nil {
		t.Fatalf("reserve 1: %v", err)
	}
	if _, err := engine.Reserve(ctx, 1, sl.ID); booking.KindOf(err) != booking.KindDuplicateBooking {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := engine.Reserve(ctx, 2, sl.ID); err != nil {
		t.Fatalf("reserve 2: %v", err)
	}
	if _, err := engine.Reserve(ctx, 3, sl.ID); booking.KindOf(err) != booking.KindSlotFull {
		t.Fatalf("full: %v", err)
	}

	if _, err := engine.Release(ctx, 2, a.ID); booking.KindOf(err) != booking.KindNotOwner {
		t.Fatalf("not owner: %v", err)
	}
	view, err := engine.Release(ctx, 1, a.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if view.TrainingName != "Yoga" || view.Status != model.BookingCancelled {
		t.Fatalf("view = %+v", view)
	}
	if _, err := engine.Release(ctx, 1, a.ID); booking.KindOf(err) != booking.KindAlreadyCancelled {
		t.Fatalf("replay: %v", err)
	}
	if n, _ := s.GetCapacity(ctx, sl.ID); n != 1 {
		t.Fatalf("capacity = %d, want 1", n)
	}
}

// reserveAll runs one Reserve per (user, slot) pair concurrently and tallies outcome kinds.
func reserveAll(ctx context.Context, engine *booking.Engine, users, slots []int64) map[booking.Kind]int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	kinds := map[booking.Kind]int{}
	for i := range users {
		wg.Add(1)
		go func(u, sl int64) {
			defer wg.Done()
			_, err := engine.Reserve(ctx, u, sl)
			mu.Lock()
			kinds[booking.KindOf(err)]++
			mu.Unlock()
		}(users[i], slots[i])
	}
	wg.Wait()
	return kinds
}

func TestPostgresConcurrentLastUnit(t *testing.T) {
	s := openTestStore(t)
	// A reservation must finish on one connection; a tiny pool turns a second
	// checkout into a deadline failure instead of a pass.
	s.db.SetMaxOpenConns(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	_, sl := seedSlot(t, s, 1)
	const k = 10
	for i := int64(1); i <= k; i++ {
		seedUser(t, s, i, model.TierTrial)
	}
	engine := booking.NewEngine(s, subscription.NewPolicy(s))

	users := make([]int64, k)
	slots := make([]int64, k)
	for i := range users {
		users[i], slots[i] = int64(i+1), sl.ID
	}
	kinds := reserveAll(ctx, engine, users, slots)
	if kinds[booking.KindNone] != 1 || kinds[booking.KindSlotFull] != k-1 {
		t.Fatalf("outcomes = %v", kinds)
	}
}

func TestPostgresConcurrentQuotaOneUser(t *testing.T) {
	s := openTestStore(t)
	s.db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	tt, _ := seedSlot(t, s, 3)
	seedUser(t, s, 1, model.TierTrial)

	const k = 6
	users := make([]int64, k)
	slots := make([]int64, k)
	for i := range slots {
		sl, err := s.AddSlot(ctx, tt.ID, time.Now().Add(time.Duration(72+i)*time.Hour))
		if err != nil {
			t.Fatalf("add slot: %v", err)
		}
		users[i], slots[i] = 1, sl.ID
	}
	engine := booking.NewEngine(s, subscription.NewPolicy(s))

	kinds := reserveAll(ctx, engine, users, slots)
	if kinds[booking.KindNone] != 1 || kinds[booking.KindQuotaExceeded] != k-1 {
		t.Fatalf("outcomes = %v", kinds)
	}
	if n, err := s.CountActive(ctx, 1); err != nil || n != 1 {
		t.Fatalf("active = %d, err %v", n, err)
	}
}

func TestPostgresCatalogQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tt, sl := seedSlot(t, s, 3)
	if _, err := s.AddSlot(ctx, tt.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("add past slot: %v", err)
	}

	opts, err := s.ListTrainingOptions(ctx, 0, time.Now())
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if len(opts) != 1 || opts[0].OpenSlots != 1 || opts[0].ID != tt.ID {
		t.Fatalf("options = %+v", opts)
	}
	slots, err := s.ListOpenSlots(ctx, tt.ID, time.Now())
	if err != nil || len(slots) != 1 || slots[0].ID != sl.ID || slots[0].NominalCapacity != 3 {
		t.Fatalf("slots = %+v, err %v", slots, err)
	}
	if _, err := s.GetSlot(ctx, 999999); booking.KindOf(err) != booking.KindUnknownSlot {
		t.Fatalf("unknown slot: %v", err)
	}
	if err := s.Increment(ctx, sl.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if n, _ := s.GetCapacity(ctx, sl.ID); n != 3 {
		t.Fatalf("capacity = %d, want clamp at 3", n)
	}
}
