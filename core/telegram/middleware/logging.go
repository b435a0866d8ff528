package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/fitbot/core/logger"
	"github.com/m3rciful/fitbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/fitbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// receipts remembers recently logged update ids; the logger middleware wraps
// several routes and an update must produce one receipt line.
type receipts struct {
	mu   sync.Mutex
	seen map[int]time.Time
	ttl  time.Duration
}

var updateReceipts = &receipts{seen: make(map[int]time.Time), ttl: 10 * time.Second}

func (r *receipts) first(updateID int) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, at := range r.seen {
		if now.Sub(at) > r.ttl {
			delete(r.seen, id)
		}
	}
	if _, dup := r.seen[updateID]; dup {
		return false
	}
	r.seen[updateID] = now
	return true
}

// LoggerMiddleware sets the request id and context, then logs a sampled receipt line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		user := c.Sender()
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component(logger.CompTG))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && updateReceipts.first(upd.ID) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			switch {
			case upd.Callback != nil:
				attrs = append(attrs,
					slog.String("cb_key", logger.SanitizeLimit(callbacks.Key(upd.Callback), 64)),
					slog.String("payload", logger.SanitizeLimit(callbacks.Payload(upd.Callback), 128)),
				)
			case upd.Message != nil && upd.Message.Contact != nil:
				attrs = append(attrs, slog.String("kind", "contact"))
			case upd.Message != nil:
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 128)))
			}
			if user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			logger.LogEvent(ctx, logger.Component(logger.CompTG), slog.LevelDebug, "update.received", attrs...)
		}
		return next(c)
	}
}
