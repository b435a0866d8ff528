package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/fitbot/core/logger"
	"github.com/m3rciful/fitbot/core/telegram/format"
	"github.com/m3rciful/fitbot/core/telegram/helpers"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

const (
	grantUsage   = "<user_id> <none|trial|premium>"
	addSlotUsage = "<training_type_id> <YYYY-MM-DD HH:MM>"
)

func parseGrant(payload string) (int64, model.Tier, error) {
	fields := strings.Fields(payload)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("usage: /grant %s", grantUsage)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid user id %q", fields[0])
	}
	tier, err := model.ParseTier(fields[1])
	if err != nil {
		return 0, "", err
	}
	return id, tier, nil
}

func parseAddSlot(payload string, loc *time.Location) (int64, time.Time, error) {
	idText, when, ok := strings.Cut(strings.TrimSpace(payload), " ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("usage: /addslot %s", addSlotUsage)
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil || id <= 0 {
		return 0, time.Time{}, fmt.Errorf("invalid training type id %q", idText)
	}
	start, ok := helpers.ParseFlexibleDateTime(when, loc)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("invalid start time %q, expected YYYY-MM-DD HH:MM", strings.TrimSpace(when))
	}
	return id, start, nil
}

func (b *Bot) grant(c tele.Context) error {
	ctx := helpers.WithHandler(c, "grant")
	userID, tier, err := parseGrant(c.Message().Payload)
	if err != nil {
		return b.sender.SendText(c, err.Error())
	}

	if _, ok, err := b.admin.GetUser(ctx, userID); err != nil {
		return err
	} else if !ok {
		return b.sender.SendText(c, fmt.Sprintf("User %d has not started the bot yet.", userID))
	}

	sub := model.Subscription{UserID: userID, Tier: tier, PurchasedAt: b.now()}
	if err := b.admin.SetSubscription(ctx, sub); err != nil {
		if errors.Is(err, storage.ErrUnknownUser) {
			return b.sender.SendText(c, fmt.Sprintf("User %d has not started the bot yet.", userID))
		}
		return err
	}
	logger.Info(ctx, logger.CompBooking, "grant",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("tier", string(tier)),
	)
	return b.sender.SendText(c, fmt.Sprintf("User %d now has the %s plan.", userID, tierName(tier)))
}

func (b *Bot) addSlot(c tele.Context) error {
	ctx := helpers.WithHandler(c, "addslot")
	typeID, start, err := parseAddSlot(c.Message().Payload, b.loc)
	if err != nil {
		return b.sender.SendText(c, err.Error())
	}
	if !start.After(b.now()) {
		return b.sender.SendText(c, "The start time must be in the future.")
	}

	tt, ok, err := b.admin.GetTrainingType(ctx, typeID)
	if err != nil {
		return err
	}
	if !ok {
		return b.sender.SendText(c, fmt.Sprintf("Training type %d does not exist.", typeID))
	}

	slot, err := b.admin.AddSlot(ctx, typeID, start)
	if errors.Is(err, storage.ErrUnknownTrainingType) {
		return b.sender.SendText(c, fmt.Sprintf("Training type %d does not exist.", typeID))
	}
	if err != nil {
		return err
	}
	logger.Info(ctx, logger.CompBooking, "slot.add",
		slog.String("status", "ok"),
		slog.Int64("training_type_id", typeID),
		slog.Int64("slot_id", slot.ID),
		slog.Int("remaining", slot.RemainingCapacity),
	)
	return b.sender.SendMD(c, fmt.Sprintf("Added slot #%d: *%s*, %s, %d places.",
		slot.ID, format.MD(tt.Name), slot.StartTime.In(b.loc).Format(slotLayout), slot.RemainingCapacity))
}
