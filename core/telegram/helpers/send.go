package helpers

import (
	"errors"
	"log/slog"

	"github.com/m3rciful/fitbot/core/logger"
	"github.com/m3rciful/fitbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Sender delivers replies through the async dispatcher, falling back to a
// synchronous call when the dispatcher is absent or saturated.
type Sender struct {
	dispatcher *sender.Dispatcher
}

// NewSender wraps d; a nil dispatcher sends synchronously.
func NewSender(d *sender.Dispatcher) *Sender {
	return &Sender{dispatcher: d}
}

func (s *Sender) enqueue(c tele.Context, action string, run func() error) error {
	if s == nil || s.dispatcher == nil {
		return run()
	}
	ctx := BuildContext(c)
	_, err := s.dispatcher.Enqueue(ctx, action, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("op", action),
			logger.Err(err),
		)
		return run()
	}
	return err
}

// SendText sends text without a parse mode.
func (s *Sender) SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: first(markup)}
	return s.enqueue(c, "send.text", func() error { return c.Send(text, opts) })
}

// SendMD sends Markdown-formatted text.
func (s *Sender) SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: first(markup)}
	return s.enqueue(c, "send.md", func() error { return c.Send(text, opts) })
}

// EditOrSendMD edits the message behind a callback, or sends a new one for plain messages.
// Edits run synchronously so they apply before any follow-up message.
func (s *Sender) EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: first(markup)}
	if c.Callback() != nil {
		return c.EditOrSend(text, opts)
	}
	return s.enqueue(c, "send.md", func() error { return c.Send(text, opts) })
}

func first(markup []*tele.ReplyMarkup) *tele.ReplyMarkup {
	if len(markup) > 0 {
		return markup[0]
	}
	return nil
}
