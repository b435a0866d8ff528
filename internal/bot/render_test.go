package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/fitbot/internal/conversation"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/subscription"
)

func TestRenderMainMenuQuota(t *testing.T) {
	v := render(conversation.Reply{
		State: conversation.StateMenuIdle,
		Menu: conversation.Menu{
			Kind:   conversation.MenuMain,
			Tier:   model.TierTrial,
			Quota:  subscription.QuotaForTier(model.TierTrial),
			Active: 1,
		},
	}, nil)
	if !strings.Contains(v.text, "Trial · 1 of 1 active bookings") {
		t.Fatalf("main = %q", v.text)
	}

	v = render(conversation.Reply{Menu: conversation.Menu{
		Kind:   conversation.MenuMain,
		Tier:   model.TierPremium,
		Quota:  subscription.QuotaForTier(model.TierPremium),
		Active: 3,
	}}, nil)
	if !strings.Contains(v.text, "Premium · 3 bookings active") {
		t.Fatalf("premium main = %q", v.text)
	}
}

func TestRenderBookingsOnlyOffersCancellable(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	views := []model.BookingView{
		{Booking: model.Booking{ID: 1, Status: model.BookingActive}, TrainingName: "Hot_Yoga", StartTime: now.Add(time.Hour)},
		{Booking: model.Booking{ID: 2, Status: model.BookingActive}, TrainingName: "Boxing", StartTime: now.Add(-time.Hour)},
		{Booking: model.Booking{ID: 3, Status: model.BookingCancelled}, TrainingName: "Pilates", StartTime: now.Add(2 * time.Hour)},
	}
	v := render(conversation.Reply{Menu: conversation.Menu{Kind: conversation.MenuBookings, Bookings: views, Now: now}}, time.UTC)

	if !strings.Contains(v.text, `*Hot\_Yoga*`) {
		t.Fatalf("training names should be escaped: %q", v.text)
	}
	if !strings.Contains(v.text, "Pilates*, Mon 02 Mar 10:00 (cancelled)") {
		t.Fatalf("cancelled line missing: %q", v.text)
	}

	var cancels []string
	for _, row := range v.markup.InlineKeyboard {
		for _, btn := range row {
			if btn.Unique == cbCancel {
				cancels = append(cancels, btn.Data)
			}
		}
	}
	if len(cancels) != 1 || cancels[0] != "1" {
		t.Fatalf("cancel buttons = %v, want [1]", cancels)
	}
}

func TestRenderNoticeWithoutMenu(t *testing.T) {
	v := render(conversation.Reply{Notice: conversation.NoticeInternal}, nil)
	if !strings.Contains(v.text, "Something went wrong") || v.markup != nil {
		t.Fatalf("internal = %+v", v)
	}
}

func TestEveryNoticeHasText(t *testing.T) {
	for n := conversation.NoticeWelcome; n <= conversation.NoticeInternal; n++ {
		if noticeText[n] == "" {
			t.Errorf("notice %d has no text", n)
		}
	}
}
