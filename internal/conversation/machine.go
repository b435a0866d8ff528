package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/fitbot/core/logger"
	"github.com/m3rciful/fitbot/core/telegram/state"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/subscription"
)

// DefaultIdleTimeout is used when Config.IdleTimeout is zero.
const DefaultIdleTimeout = 30 * time.Minute

// Catalog is the read-only menu data.
type Catalog interface {
	ListTrainingTypes(ctx context.Context) ([]model.TrainingType, error)
	GetTrainingType(ctx context.Context, id int64) (model.TrainingType, bool, error)
	ListTrainingOptions(ctx context.Context, typeID int64, now time.Time) ([]model.TrainingOption, error)
	ListOpenSlots(ctx context.Context, typeID int64, now time.Time) ([]model.SlotView, error)
	GetSlot(ctx context.Context, id int64) (model.SlotView, error)
}

// Directory stores users and their subscriptions at registration.
type Directory interface {
	GetUser(ctx context.Context, id int64) (model.User, bool, error)
	UpsertUser(ctx context.Context, u model.User) (model.User, error)
	SetSubscription(ctx context.Context, sub model.Subscription) error
}

// Booker is the booking engine.
type Booker interface {
	Reserve(ctx context.Context, userID, slotID int64) (model.Booking, error)
	Release(ctx context.Context, userID, bookingID int64) (model.BookingView, error)
	ListBookings(ctx context.Context, userID int64) ([]model.BookingView, error)
	CountActive(ctx context.Context, userID int64) (int, error)
}

// TierPolicy resolves the quota shown in the main menu.
type TierPolicy interface {
	QuotaFor(ctx context.Context, userID int64) (model.Tier, subscription.Quota, error)
}

// Observer is told about state changes and idle expirations.
type Observer interface {
	Transition(from, to state.State)
	SessionExpired()
}

// Config wires a Machine. Sessions, Catalog, Users, Bookings and Policy are required.
type Config struct {
	Sessions state.Store
	Catalog  Catalog
	Users    Directory
	Bookings Booker
	Policy   TierPolicy

	ValidatePhone PhoneValidator
	// IdleTimeout expires a session untouched for longer. Negative disables expiry.
	IdleTimeout time.Duration
	Observer    Observer
	Now         func() time.Time
}

// Profile is what the transport knows about the sender.
type Profile struct {
	DisplayName string
	Handle      string
}

// Event is one inbound user action.
type Event struct {
	UserID  int64
	Profile Profile
	Command Command
}

const lockStripes = 64

// Machine is the conversation state machine. Events of one user are handled
// one at a time; different users proceed in parallel.
type Machine struct {
	cfg   Config
	locks [lockStripes]sync.Mutex
}

// New validates cfg and returns a Machine.
func New(cfg Config) (*Machine, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, errors.New("conversation: nil session store")
	case cfg.Catalog == nil:
		return nil, errors.New("conversation: nil catalog")
	case cfg.Users == nil:
		return nil, errors.New("conversation: nil user directory")
	case cfg.Bookings == nil:
		return nil, errors.New("conversation: nil booking engine")
	case cfg.Policy == nil:
		return nil, errors.New("conversation: nil tier policy")
	}
	if cfg.ValidatePhone == nil {
		cfg.ValidatePhone = DefaultPhoneValidator
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{cfg: cfg}, nil
}

func (m *Machine) lock(userID int64) func() {
	mu := &m.locks[uint64(userID)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// turn is the working state of one Handle call.
type turn struct {
	ev         Event
	sess       state.Session
	registered bool
	now        time.Time

	// expiredFrom is the state of a session that idled out before this turn.
	expiredFrom state.State
	idle        time.Duration
}

// InProgress reports whether the user is in the middle of a dialogue, that is
// holds a live session outside the main menu.
func (m *Machine) InProgress(ctx context.Context, userID int64) bool {
	sess, ok, err := m.cfg.Sessions.Load(ctx, userID)
	if err != nil || !ok {
		return false
	}
	return sess.State != StateMenuIdle && !sess.Expired(m.cfg.Now(), m.cfg.IdleTimeout)
}

// State returns the current state of userID, resolving absent or idle sessions
// to the default state.
func (m *Machine) State(ctx context.Context, userID int64) (state.State, error) {
	t, err := m.begin(ctx, Event{UserID: userID})
	if err != nil {
		return state.StateNone, err
	}
	return t.sess.State, nil
}

// Handle applies ev and returns what to show. Domain rejections come back as
// notices; a non-nil error means a storage failure. Even then the returned
// Reply is meaningful when its State is set.
func (m *Machine) Handle(ctx context.Context, ev Event) (Reply, error) {
	if err := ev.Command.Validate(); err != nil {
		return Reply{}, fmt.Errorf("conversation: %w", err)
	}
	defer m.lock(ev.UserID)()

	t, err := m.begin(ctx, ev)
	if err != nil {
		return Reply{}, err
	}
	from := t.sess.State
	if t.expiredFrom != state.StateNone {
		if m.cfg.Observer != nil {
			m.cfg.Observer.SessionExpired()
		}
		logger.Info(ctx, logger.CompConversation, "session.expired",
			slog.String("state", string(t.expiredFrom)),
			slog.Duration("idle", t.idle),
		)
	}

	reply, herr := m.dispatch(ctx, t)
	if reply.State == state.StateNone {
		return reply, herr
	}
	if err := m.persist(ctx, t, reply.State); err != nil {
		return reply, errors.Join(herr, err)
	}

	if from != reply.State && m.cfg.Observer != nil {
		m.cfg.Observer.Transition(from, reply.State)
	}
	logger.Debug(ctx, logger.CompConversation, "transition",
		slog.String("from", string(from)),
		slog.String("to", string(reply.State)),
		slog.String("cmd", ev.Command.Kind.String()),
	)
	return reply, herr
}

// begin loads the session and resolves absent, stale or expired ones to the default state.
func (m *Machine) begin(ctx context.Context, ev Event) (*turn, error) {
	t := &turn{ev: ev, now: m.cfg.Now()}

	u, ok, err := m.cfg.Users.GetUser(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load user: %w", err)
	}
	t.registered = ok && u.Phone != ""

	sess, ok, err := m.cfg.Sessions.Load(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}
	switch {
	case ok && sess.Expired(t.now, m.cfg.IdleTimeout):
		t.expiredFrom = sess.State
		t.idle = t.now.Sub(sess.UpdatedAt)
		sess = state.Session{}
	case ok && registering(sess.State) == t.registered:
		// Registration state no longer matches the stored user.
		sess = state.Session{}
	}
	if sess.State == state.StateNone {
		sess = state.Session{State: m.defaultState(t.registered)}
	}
	t.sess = sess
	return t, nil
}

func (m *Machine) defaultState(registered bool) state.State {
	if registered {
		return StateMenuIdle
	}
	return StateAwaitingAgreement
}

// persist stores the session for to. Reaching the main menu clears it.
func (m *Machine) persist(ctx context.Context, t *turn, to state.State) error {
	if to == StateMenuIdle {
		if err := m.cfg.Sessions.Clear(ctx, t.ev.UserID); err != nil {
			return fmt.Errorf("conversation: clear session: %w", err)
		}
		return nil
	}
	t.sess.State = to
	t.sess.UpdatedAt = t.now
	if err := m.cfg.Sessions.Save(ctx, t.ev.UserID, t.sess); err != nil {
		return fmt.Errorf("conversation: save session: %w", err)
	}
	return nil
}
