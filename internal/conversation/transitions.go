package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/fitbot/core/logger"
	"github.com/m3rciful/fitbot/core/telegram/state"
	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/model"
)

type handler func(m *Machine, ctx context.Context, t *turn) (Reply, error)

// anyState commands are accepted everywhere.
var anyState = map[CommandKind]handler{
	CmdStart: (*Machine).start,
	CmdAbort: (*Machine).abort,
}

// transitions is the state by command table. A pair missing here re-prompts
// the current state without advancing.
var transitions = map[state.State]map[CommandKind]handler{
	StateAwaitingAgreement: {
		CmdAgree:   (*Machine).agree,
		CmdText:    (*Machine).needAgreement,
		CmdContact: (*Machine).needAgreement,
	},
	StateAwaitingPhone: {
		CmdText:    (*Machine).phone,
		CmdContact: (*Machine).phone,
		CmdBack:    back(StateAwaitingAgreement),
	},
	StateAwaitingTierChoice: {
		CmdChooseTier: (*Machine).chooseTier,
		CmdBack:       back(StateAwaitingPhone, keyPhone),
	},
	StateMenuIdle: {
		CmdBook:          (*Machine).book,
		CmdMyBookings:    (*Machine).myBookings,
		CmdFAQ:           (*Machine).faq,
		CmdCancelBooking: (*Machine).cancelBooking,
		CmdBack:          back(StateMenuIdle),
	},
	StateChoosingType: {
		CmdSelectType: (*Machine).selectType,
		CmdBack:       back(StateMenuIdle),
	},
	StateChoosingTraining: {
		CmdSelectTraining: (*Machine).selectTraining,
		CmdBack:           back(StateChoosingType, keyType, keyTraining),
	},
	StateChoosingSlot: {
		CmdSelectSlot: (*Machine).selectSlot,
		CmdBack:       back(StateChoosingTraining, keyTraining),
	},
	StateViewingBookings: {
		CmdCancelBooking: (*Machine).cancelBooking,
		CmdBook:          (*Machine).book,
		CmdMyBookings:    (*Machine).myBookings,
		CmdFAQ:           (*Machine).faq,
		CmdBack:          back(StateMenuIdle),
	},
}

func (m *Machine) dispatch(ctx context.Context, t *turn) (Reply, error) {
	kind := t.ev.Command.Kind
	if h, ok := anyState[kind]; ok {
		return h(m, ctx, t)
	}
	if h, ok := transitions[t.sess.State][kind]; ok {
		return h(m, ctx, t)
	}
	notice := NoticeUnexpectedInput
	if t.expiredFrom != state.StateNone && t.expiredFrom != StateMenuIdle {
		notice = NoticeSessionExpired
	}
	return m.enter(ctx, t, t.sess.State, notice)
}

// back returns to the previous state, forgetting the given selections.
func back(to state.State, drop ...string) handler {
	return func(m *Machine, ctx context.Context, t *turn) (Reply, error) {
		t.sess.Drop(drop...)
		return m.enter(ctx, t, to, NoticeNone)
	}
}

// enter moves to st and loads its menu.
func (m *Machine) enter(ctx context.Context, t *turn, st state.State, notice Notice) (Reply, error) {
	menu, err := m.menu(ctx, t, st)
	if err != nil {
		return Reply{}, err
	}
	return Reply{State: st, Menu: menu, Notice: notice}, nil
}

// settle is enter after a committed mutation: a menu that fails to load is
// logged and left empty so the outcome still reaches the user.
func (m *Machine) settle(ctx context.Context, t *turn, st state.State, notice Notice) Reply {
	reply, err := m.enter(ctx, t, st, notice)
	if err != nil {
		logger.Warn(ctx, logger.CompConversation, "menu.load", slog.String("state", string(st)), logger.Err(err))
		return Reply{State: st, Notice: notice}
	}
	return reply
}

// fail reports a storage failure while still moving to st.
func (m *Machine) fail(st state.State, err error) (Reply, error) {
	return Reply{State: st, Notice: NoticeInternal}, err
}

func (m *Machine) menu(ctx context.Context, t *turn, st state.State) (Menu, error) {
	menu := Menu{Now: t.now}
	var err error
	switch st {
	case StateAwaitingAgreement:
		menu.Kind = MenuAgreement
	case StateAwaitingPhone:
		menu.Kind = MenuPhone
	case StateAwaitingTierChoice:
		menu.Kind = MenuTier
	case StateMenuIdle:
		menu.Kind = MenuMain
		if menu.Tier, menu.Quota, err = m.cfg.Policy.QuotaFor(ctx, t.ev.UserID); err == nil {
			menu.Active, err = m.cfg.Bookings.CountActive(ctx, t.ev.UserID)
		}
	case StateChoosingType:
		menu.Kind = MenuTypes
		menu.Types, err = m.cfg.Catalog.ListTrainingTypes(ctx)
	case StateChoosingTraining:
		menu.Kind = MenuTrainings
		menu.Trainings, err = m.cfg.Catalog.ListTrainingOptions(ctx, typeFilter(t.sess), t.now)
	case StateChoosingSlot:
		menu.Kind = MenuSlots
		training, _ := t.sess.Int64(keyTraining)
		menu.Slots, err = m.cfg.Catalog.ListOpenSlots(ctx, training, t.now)
	case StateViewingBookings:
		menu.Kind = MenuBookings
		menu.Bookings, err = m.cfg.Bookings.ListBookings(ctx, t.ev.UserID)
	default:
		return Menu{}, fmt.Errorf("conversation: no menu for state %q", st)
	}
	if err != nil {
		return Menu{}, fmt.Errorf("conversation: load %s menu: %w", st, err)
	}
	return menu, nil
}

// typeFilter returns the chosen training type, 0 for every type.
func typeFilter(s state.Session) int64 {
	id, ok := s.Int64(keyType)
	if !ok {
		return 0
	}
	return id
}

func (m *Machine) start(ctx context.Context, t *turn) (Reply, error) {
	t.sess = state.Session{}
	return m.enter(ctx, t, m.defaultState(t.registered), NoticeWelcome)
}

func (m *Machine) abort(ctx context.Context, t *turn) (Reply, error) {
	t.sess = state.Session{}
	return m.enter(ctx, t, m.defaultState(t.registered), NoticeAborted)
}

func (m *Machine) agree(ctx context.Context, t *turn) (Reply, error) {
	return m.enter(ctx, t, StateAwaitingPhone, NoticeNone)
}

func (m *Machine) needAgreement(ctx context.Context, t *turn) (Reply, error) {
	return m.enter(ctx, t, StateAwaitingAgreement, NoticeAgreementRequired)
}

func (m *Machine) phone(ctx context.Context, t *turn) (Reply, error) {
	phone, ok := m.cfg.ValidatePhone(t.ev.Command.Text)
	if !ok {
		return m.enter(ctx, t, StateAwaitingPhone, NoticeInvalidPhone)
	}
	t.sess.Put(keyPhone, phone)
	return m.enter(ctx, t, StateAwaitingTierChoice, NoticeNone)
}

func (m *Machine) chooseTier(ctx context.Context, t *turn) (Reply, error) {
	phone, ok := t.sess.Value(keyPhone)
	if !ok {
		return m.enter(ctx, t, StateAwaitingPhone, NoticeInvalidPhone)
	}
	prof := t.ev.Profile
	if _, err := m.cfg.Users.UpsertUser(ctx, model.User{
		ID:             t.ev.UserID,
		DisplayName:    prof.DisplayName,
		Phone:          phone,
		ExternalHandle: prof.Handle,
	}); err != nil {
		return Reply{}, fmt.Errorf("conversation: register user: %w", err)
	}
	sub := model.Subscription{UserID: t.ev.UserID, Tier: t.ev.Command.Tier, PurchasedAt: t.now}
	if err := m.cfg.Users.SetSubscription(ctx, sub); err != nil {
		return Reply{}, fmt.Errorf("conversation: store subscription: %w", err)
	}
	t.registered = true
	t.sess = state.Session{}
	return m.enter(ctx, t, StateMenuIdle, NoticeRegistered)
}

func (m *Machine) book(ctx context.Context, t *turn) (Reply, error) {
	t.sess.Drop(keyType, keyTraining)
	reply, err := m.enter(ctx, t, StateChoosingType, NoticeNone)
	if err != nil || len(reply.Menu.Types) > 0 {
		return reply, err
	}
	return m.enter(ctx, t, StateMenuIdle, NoticeNoTrainings)
}

func (m *Machine) myBookings(ctx context.Context, t *turn) (Reply, error) {
	reply, err := m.enter(ctx, t, StateViewingBookings, NoticeNone)
	if err != nil || len(reply.Menu.Bookings) > 0 {
		return reply, err
	}
	return m.enter(ctx, t, StateMenuIdle, NoticeNoBookings)
}

func (m *Machine) faq(ctx context.Context, t *turn) (Reply, error) {
	reply, err := m.enter(ctx, t, StateMenuIdle, NoticeNone)
	reply.Menu.Kind = MenuFAQ
	return reply, err
}

// selectType re-checks the type against the catalog and requires at least one open date.
func (m *Machine) selectType(ctx context.Context, t *turn) (Reply, error) {
	cmd := t.ev.Command
	if !cmd.All {
		_, ok, err := m.cfg.Catalog.GetTrainingType(ctx, cmd.ID)
		if err != nil {
			return Reply{}, fmt.Errorf("conversation: load training type: %w", err)
		}
		if !ok {
			return m.enter(ctx, t, StateChoosingType, NoticeUnknownType)
		}
		t.sess.PutInt64(keyType, cmd.ID)
	} else {
		t.sess.Put(keyType, allTypes)
	}
	reply, err := m.enter(ctx, t, StateChoosingTraining, NoticeNone)
	if err != nil || len(reply.Menu.Trainings) > 0 {
		return reply, err
	}
	t.sess.Drop(keyType)
	return m.enter(ctx, t, StateChoosingType, NoticeNoTrainings)
}

// selectTraining re-checks that the training still has open dates.
func (m *Machine) selectTraining(ctx context.Context, t *turn) (Reply, error) {
	id := t.ev.Command.ID
	if filter := typeFilter(t.sess); filter != 0 && filter != id {
		return m.enter(ctx, t, StateChoosingTraining, NoticeUnknownType)
	}
	t.sess.PutInt64(keyTraining, id)
	reply, err := m.enter(ctx, t, StateChoosingSlot, NoticeNone)
	if err != nil || len(reply.Menu.Slots) > 0 {
		return reply, err
	}

	t.sess.Drop(keyTraining)
	reply, err = m.enter(ctx, t, StateChoosingTraining, NoticeNoDates)
	if err != nil || len(reply.Menu.Trainings) > 0 {
		return reply, err
	}
	t.sess.Drop(keyType)
	return m.enter(ctx, t, StateChoosingType, NoticeNoDates)
}

// selectSlot is the terminal step: it reserves and always returns to the main menu.
func (m *Machine) selectSlot(ctx context.Context, t *turn) (Reply, error) {
	slotID := t.ev.Command.ID
	training, _ := t.sess.Int64(keyTraining)
	t.sess = state.Session{}

	slot, err := m.cfg.Catalog.GetSlot(ctx, slotID)
	switch kind := booking.KindOf(err); {
	case kind == booking.KindUnknownSlot:
		return m.enter(ctx, t, StateMenuIdle, NoticeUnknownSlot)
	case err != nil:
		return m.fail(StateMenuIdle, fmt.Errorf("conversation: load slot: %w", err))
	case slot.TrainingTypeID != training || slot.Past(t.now):
		return m.enter(ctx, t, StateMenuIdle, NoticeUnknownSlot)
	}

	b, err := m.cfg.Bookings.Reserve(ctx, t.ev.UserID, slotID)
	if kind := booking.KindOf(err); kind == booking.KindInternal {
		return m.fail(StateMenuIdle, err)
	} else if err != nil {
		return m.enter(ctx, t, StateMenuIdle, noticeFor(kind))
	}

	reply := m.settle(ctx, t, StateMenuIdle, NoticeBooked)
	reply.Booking = &model.BookingView{Booking: b, TrainingName: slot.TrainingName, StartTime: slot.StartTime}
	return reply, nil
}

func (m *Machine) cancelBooking(ctx context.Context, t *turn) (Reply, error) {
	view, err := m.cfg.Bookings.Release(ctx, t.ev.UserID, t.ev.Command.ID)
	notice := NoticeReleased
	if kind := booking.KindOf(err); kind == booking.KindInternal {
		return m.fail(StateViewingBookings, err)
	} else if err != nil {
		notice = noticeFor(kind)
	}
	reply := m.settle(ctx, t, StateViewingBookings, notice)
	if err == nil {
		reply.Booking = &view
	}
	return reply, nil
}
