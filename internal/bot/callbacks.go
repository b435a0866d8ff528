package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/fitbot/core/telegram/callbacks"
	"github.com/m3rciful/fitbot/core/telegram/keyboard"
	"github.com/m3rciful/fitbot/internal/conversation"
	"github.com/m3rciful/fitbot/internal/model"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques. Each one maps to exactly one conversation command.
const (
	cbAgree      = "agree"
	cbTier       = "tier"
	cbBook       = "book"
	cbMyBookings = "mybookings"
	cbFAQ        = "faq"
	cbType       = "type"
	cbTraining   = "training"
	cbSlot       = "slot"
	cbBack       = "back"
	cbCancel     = "cancel"
)

var callbackUniques = []string{
	cbAgree, cbTier, cbBook, cbMyBookings, cbFAQ,
	cbType, cbTraining, cbSlot, cbBack, cbCancel,
}

const allTypesPayload = "all"

// decodeCallback turns a button press into a conversation command.
func decodeCallback(cb *tele.Callback) (conversation.Command, error) {
	key := callbacks.Key(cb)
	payload := strings.TrimSpace(callbacks.Payload(cb))

	switch key {
	case cbAgree:
		return conversation.Agree(), nil
	case cbBook:
		return conversation.Book(), nil
	case cbMyBookings:
		return conversation.MyBookings(), nil
	case cbFAQ:
		return conversation.FAQ(), nil
	case cbBack:
		return conversation.Back(), nil
	case cbTier:
		tier, err := model.ParseTier(payload)
		if err != nil {
			return conversation.Command{}, err
		}
		return conversation.ChooseTier(tier), nil
	case cbType:
		if payload == allTypesPayload {
			return conversation.SelectAllTypes(), nil
		}
		id, err := parseID(key, payload)
		return conversation.SelectType(id), err
	case cbTraining:
		id, err := parseID(key, payload)
		return conversation.SelectTraining(id), err
	case cbSlot:
		id, err := parseID(key, payload)
		return conversation.SelectSlot(id), err
	case cbCancel:
		id, err := parseID(key, payload)
		return conversation.CancelBooking(id), err
	}
	return conversation.Command{}, fmt.Errorf("unknown callback %q", key)
}

func parseID(key, payload string) (int64, error) {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("callback %s: bad id %q: %w", key, payload, err)
	}
	return id, nil
}

func idButton(text, unique string, id int64) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: unique, Data: strconv.FormatInt(id, 10)}
}

func button(text, unique string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: unique}
}
