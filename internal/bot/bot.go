// Package bot is the Telegram presentation layer: it turns updates into
// conversation commands and renders the semantic replies as chat messages.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/fitbot/core/logger"
	tg "github.com/m3rciful/fitbot/core/telegram"
	"github.com/m3rciful/fitbot/core/telegram/callbacks"
	"github.com/m3rciful/fitbot/core/telegram/commands"
	"github.com/m3rciful/fitbot/core/telegram/helpers"
	"github.com/m3rciful/fitbot/core/telegram/keyboard"
	"github.com/m3rciful/fitbot/core/telegram/router"
	"github.com/m3rciful/fitbot/core/telegram/state"
	"github.com/m3rciful/fitbot/internal/conversation"
	"github.com/m3rciful/fitbot/internal/model"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the state machine behind the chat.
type Conversation interface {
	Handle(ctx context.Context, ev conversation.Event) (conversation.Reply, error)
	InProgress(ctx context.Context, userID int64) bool
	State(ctx context.Context, userID int64) (state.State, error)
}

// Admin is the provisioning surface used by admin commands.
type Admin interface {
	GetUser(ctx context.Context, id int64) (model.User, bool, error)
	SetSubscription(ctx context.Context, sub model.Subscription) error
	GetTrainingType(ctx context.Context, id int64) (model.TrainingType, bool, error)
	AddSlot(ctx context.Context, typeID int64, start time.Time) (model.ScheduleSlot, error)
}

// Options wires a Bot. Conversation and Admin are required.
type Options struct {
	Conversation Conversation
	Admin        Admin
	// Sender delivers replies; nil sends synchronously.
	Sender *helpers.Sender
	// Location renders and parses schedule times. Nil means UTC.
	Location *time.Location
	Now      func() time.Time
}

// Bot binds the conversation machine to telebot handlers.
type Bot struct {
	conv   Conversation
	admin  Admin
	sender *helpers.Sender
	loc    *time.Location
	now    func() time.Time
}

// New validates opts and returns a Bot.
func New(opts Options) (*Bot, error) {
	if opts.Conversation == nil {
		return nil, errors.New("bot: nil conversation")
	}
	if opts.Admin == nil {
		return nil, errors.New("bot: nil admin store")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bot{
		conv:   opts.Conversation,
		admin:  opts.Admin,
		sender: opts.Sender,
		loc:    opts.Location,
		now:    opts.Now,
	}, nil
}

// Register adds the bot's commands, callbacks and text fallback to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start": {
			Handler:     b.command(conversation.Start),
			Description: "Open the main menu",
		},
		"/cancel": {
			Handler:     b.command(conversation.Abort),
			Description: "Stop the current dialogue",
		},
		"/book": {
			Handler:     b.command(conversation.Book),
			Description: "Book a training",
		},
		"/mybookings": {
			Handler:     b.command(conversation.MyBookings),
			Description: "Show my bookings",
			Aliases:     []string{"/bookings"},
		},
		"/help": {
			Handler:     b.command(conversation.FAQ),
			Description: "Frequently asked questions",
			Aliases:     []string{"/faq"},
		},
		"/grant": {
			Handler:     b.grant,
			Description: "Set a user's plan",
			Usage:       grantUsage,
			AdminOnly:   true,
		},
		"/addslot": {
			Handler:     b.addSlot,
			Description: "Add a schedule slot",
			Usage:       addSlotUsage,
			AdminOnly:   true,
		},
	}
	var errs []error
	for name, cmd := range cmds {
		errs = append(errs, reg.RegisterCommand(name, cmd))
	}
	for _, key := range callbackUniques {
		errs = append(errs, reg.RegisterCallback(key, b.onCallback))
	}
	reg.SetTextFallback(b.HandleInput)
	return errors.Join(errs...)
}

// Routes returns command, callback and text routes for reg.
func (b *Bot) Routes(reg *tg.Registry, adminID int64) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       adminID,
		OnAdminReject: b.onAdminReject,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return append(routes, router.TextRoutes(b, reg, router.TextOptions{
		UnknownText:    b.HandleInput,
		UnknownContact: b.HandleInput,
	})...)
}

// InProgress reports whether userID is mid-dialogue.
func (b *Bot) InProgress(ctx context.Context, userID int64) bool {
	return b.conv.InProgress(ctx, userID)
}

// HandleInput forwards free text and shared contacts to the conversation.
func (b *Bot) HandleInput(c tele.Context) error {
	msg := c.Message()
	if msg != nil && msg.Contact != nil {
		return b.dispatch(c, conversation.Contact(ownPhone(c.Sender(), msg.Contact)))
	}
	return b.dispatch(c, conversation.Text(c.Text()))
}

// OnLimited answers a throttled update.
func (b *Bot) OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Too many requests, slow down a little."})
	}
	return b.sender.SendText(c, "Too many requests, slow down a little.")
}

func (b *Bot) command(build func() conversation.Command) tele.HandlerFunc {
	return func(c tele.Context) error { return b.dispatch(c, build()) }
}

func (b *Bot) onCallback(c tele.Context) error {
	cmd, err := decodeCallback(c.Callback())
	if err != nil {
		ctx := helpers.BuildContext(c)
		logger.Warn(ctx, logger.CompTG, "callback.decode",
			slog.String("status", "rejected"),
			slog.String("cb_key", callbacks.CallbackKey(c)),
			logger.Err(err),
		)
		return c.Respond(&tele.CallbackResponse{Text: "This button is no longer active"})
	}
	return b.dispatch(c, cmd)
}

func (b *Bot) onAdminReject(c tele.Context) error {
	return b.sender.SendText(c, "This command is for administrators only.")
}

// dispatch runs cmd through the conversation and sends what it produced.
func (b *Bot) dispatch(c tele.Context, cmd conversation.Command) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)

	var prev state.State
	if c.Callback() == nil {
		prev, _ = b.conv.State(ctx, user.ID)
	}

	reply, err := b.conv.Handle(ctx, conversation.Event{
		UserID:  user.ID,
		Profile: profileOf(user),
		Command: cmd,
	})
	if err != nil {
		logger.Error(ctx, logger.CompConversation, "handle",
			slog.String("status", "fail"),
			slog.String("cmd", cmd.Kind.String()),
			logger.Err(err),
		)
		if reply.Notice == conversation.NoticeNone {
			reply.Notice = conversation.NoticeInternal
		}
	}

	for _, v := range b.views(prev, reply) {
		if serr := b.send(c, v); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return err
}

// views renders reply, hiding the contact keyboard once the phone step is left.
func (b *Bot) views(prev state.State, reply conversation.Reply) []view {
	out := render(reply, b.loc)
	if prev == conversation.StateAwaitingPhone && reply.State != conversation.StateAwaitingPhone {
		return []view{{text: "👍", markup: keyboard.RemoveKeyboard(), fresh: true}, out}
	}
	return []view{out}
}

func (b *Bot) send(c tele.Context, v view) error {
	if v.text == "" {
		return nil
	}
	if v.fresh {
		return b.sender.SendMD(c, v.text, v.markup)
	}
	return b.sender.EditOrSendMD(c, v.text, v.markup)
}

func profileOf(u *tele.User) conversation.Profile {
	return conversation.Profile{
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Handle:      u.Username,
	}
}

// ownPhone returns the contact's number when it belongs to the sender. A
// forwarded contact of someone else yields an empty number, which fails validation.
func ownPhone(sender *tele.User, contact *tele.Contact) string {
	if sender == nil || (contact.UserID != 0 && contact.UserID != sender.ID) {
		return ""
	}
	return contact.PhoneNumber
}
