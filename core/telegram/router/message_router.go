package router

import (
	"context"
	"time"

	tg "github.com/m3rciful/fitbot/core/telegram"
	tghelpers "github.com/m3rciful/fitbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// FSM receives free-form input while a user is in the middle of a dialogue.
type FSM interface {
	InProgress(ctx context.Context, userID int64) bool
	HandleInput(c tele.Context) error
}

// TextOptions controls fallbacks for text and contact updates.
type TextOptions struct {
	UnknownText    tele.HandlerFunc
	UnknownContact tele.HandlerFunc
}

// TextRoutes routes text and shared contacts: first to an active dialogue, then
// to a command matched by text, then to the fallbacks.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	inDialogue := func(c tele.Context) bool {
		return fsm != nil && c.Sender() != nil && fsm.InProgress(tghelpers.BuildContext(c), c.Sender().ID)
	}

	text := func(c tele.Context) error {
		start := time.Now()
		if inDialogue(c) {
			return handleWithSummary(c, "fsm", start, func() error { return fsm.HandleInput(c) })
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error { return opts.UnknownText(c) })
		}
		logSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	contact := func(c tele.Context) error {
		start := time.Now()
		if inDialogue(c) {
			return handleWithSummary(c, "fsm_contact", start, func() error { return fsm.HandleInput(c) })
		}
		if opts.UnknownContact != nil {
			return handleWithSummary(c, "unexpected_contact", start, func() error { return opts.UnknownContact(c) })
		}
		logSummary(c, "unexpected_contact", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnContact, Handler: wrap(contact)},
	}
}
