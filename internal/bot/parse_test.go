package bot

import (
	"testing"
	"time"

	"github.com/m3rciful/fitbot/internal/conversation"
	"github.com/m3rciful/fitbot/internal/model"

	tele "gopkg.in/telebot.v4"
)

func TestDecodeCallback(t *testing.T) {
	cases := []struct {
		cb   tele.Callback
		want conversation.Command
		err  bool
	}{
		{cb: tele.Callback{Unique: cbAgree}, want: conversation.Agree()},
		{cb: tele.Callback{Unique: cbTier, Data: "premium"}, want: conversation.ChooseTier(model.TierPremium)},
		{cb: tele.Callback{Unique: cbType, Data: "all"}, want: conversation.SelectAllTypes()},
		{cb: tele.Callback{Unique: cbType, Data: "3"}, want: conversation.SelectType(3)},
		{cb: tele.Callback{Data: "\fslot|9"}, want: conversation.SelectSlot(9)},
		{cb: tele.Callback{Unique: cbCancel, Data: "12"}, want: conversation.CancelBooking(12)},
		{cb: tele.Callback{Unique: cbBack}, want: conversation.Back()},
		{cb: tele.Callback{Unique: cbTier, Data: "gold"}, err: true},
		{cb: tele.Callback{Unique: cbTraining, Data: "x"}, err: true},
		{cb: tele.Callback{Unique: "nope"}, err: true},
	}
	for _, tc := range cases {
		got, err := decodeCallback(&tc.cb)
		if tc.err {
			if err == nil {
				t.Errorf("decode %+v: expected error", tc.cb)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("decode %+v = %+v, %v; want %+v", tc.cb, got, err, tc.want)
		}
	}
}

func TestParseGrant(t *testing.T) {
	id, tier, err := parseGrant(" 17  Trial ")
	if err != nil || id != 17 || tier != model.TierTrial {
		t.Fatalf("parseGrant = %d %q %v", id, tier, err)
	}
	for _, bad := range []string{"", "17", "x trial", "-1 trial", "17 gold", "1 2 3"} {
		if _, _, err := parseGrant(bad); err == nil {
			t.Errorf("parseGrant(%q): expected error", bad)
		}
	}
}

func TestParseAddSlot(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	id, start, err := parseAddSlot("4 2026-03-05 18:30", loc)
	if err != nil || id != 4 {
		t.Fatalf("parseAddSlot = %d %v %v", id, start, err)
	}
	if want := time.Date(2026, 3, 5, 15, 30, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("start = %v, want %v", start, want)
	}
	if _, start, err = parseAddSlot("4 05.03.2026 18:30", loc); err != nil || start.Day() != 5 {
		t.Fatalf("dotted date = %v %v", start, err)
	}
	for _, bad := range []string{"", "4", "x 2026-03-05 18:30", "4 tomorrow"} {
		if _, _, err := parseAddSlot(bad, loc); err == nil {
			t.Errorf("parseAddSlot(%q): expected error", bad)
		}
	}
}
