package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/fitbot/core/telegram/format"
	"github.com/m3rciful/fitbot/core/telegram/keyboard"
	"github.com/m3rciful/fitbot/internal/conversation"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/subscription"

	tele "gopkg.in/telebot.v4"
)

const slotLayout = "Mon 02 Jan 15:04"

var noticeText = map[conversation.Notice]string{
	conversation.NoticeWelcome:           "👋 Welcome to the studio bot!",
	conversation.NoticeRegistered:        "✅ Registration complete.",
	conversation.NoticeAgreementRequired: "Please accept the terms with the button below to continue.",
	conversation.NoticeInvalidPhone:      "That does not look like a phone number. Send 10 to 15 digits, optionally starting with +.",
	conversation.NoticeUnexpectedInput:   "Please use the buttons below.",
	conversation.NoticeSessionExpired:    "⌛ Your previous session expired, let's start over.",
	conversation.NoticeAborted:           "Cancelled.",
	conversation.NoticeNoTrainings:       "There are no trainings available right now.",
	conversation.NoticeNoDates:           "No free dates left for that training.",
	conversation.NoticeNoBookings:        "You have no bookings yet.",
	conversation.NoticeUnknownType:       "That training type is no longer available.",
	conversation.NoticeBooked:            "✅ You are booked.",
	conversation.NoticeReleased:          "Booking cancelled.",
	conversation.NoticeDuplicateBooking:  "You are already booked on this date.",
	conversation.NoticeQuotaExceeded:     "Your plan allows no more active bookings. Cancel one first or upgrade.",
	conversation.NoticeSlotFull:          "❌ Sorry, that date just filled up.",
	conversation.NoticeUnknownSlot:       "That date is no longer available.",
	conversation.NoticeUnknownBooking:    "That booking was not found.",
	conversation.NoticeNotOwner:          "That booking belongs to someone else.",
	conversation.NoticeAlreadyCancelled:  "That booking was already cancelled.",
	conversation.NoticeInternal:          "⚠️ Something went wrong on our side. Please try again later.",
}

const faqText = `*Frequently asked questions*

*How do I cancel a booking?*
Open "My bookings" and press the cancel button next to it.

*What should I bring?*
Comfortable clothes, water and a good mood!

*Is there a free trial?*
Yes, the trial plan lets you hold one booking at a time.`

// view is one outbound message.
type view struct {
	text   string
	markup *tele.ReplyMarkup
	// fresh forces a new message instead of editing the pressed one.
	fresh bool
}

// render maps a semantic reply to chat text and buttons.
func render(r conversation.Reply, loc *time.Location) view {
	var b strings.Builder
	if s := noticeLine(r, loc); s != "" {
		b.WriteString(s)
	}

	body, markup, fresh := menuView(r.Menu, loc)
	if body != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(body)
	}
	return view{text: b.String(), markup: markup, fresh: fresh}
}

func noticeLine(r conversation.Reply, loc *time.Location) string {
	text, ok := noticeText[r.Notice]
	if !ok {
		return ""
	}
	if r.Booking != nil && (r.Notice == conversation.NoticeBooked || r.Notice == conversation.NoticeReleased) {
		text += "\n" + bookingLine(*r.Booking, loc)
	}
	return text
}

func menuView(m conversation.Menu, loc *time.Location) (string, *tele.ReplyMarkup, bool) {
	switch m.Kind {
	case conversation.MenuAgreement:
		return "To book trainings we store your name, phone number and Telegram username. Do you agree?",
			keyboard.InlineButtonsRows([]keyboard.InlineBtn{button("✅ I agree", cbAgree)}), false
	case conversation.MenuPhone:
		return "📞 Send your phone number or share your contact with the button below. /cancel stops registration.",
			keyboard.ContactRequest("📱 Share phone number"), true
	case conversation.MenuTier:
		return tierMenu()
	case conversation.MenuMain:
		return mainHeader(m), mainButtons(), false
	case conversation.MenuFAQ:
		return faqText, keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{button("📅 Book a training", cbBook)},
			[]keyboard.InlineBtn{button("⬅️ Back", cbBack)},
		), false
	case conversation.MenuTypes:
		btns := make([]keyboard.InlineBtn, 0, len(m.Types)+1)
		for _, t := range m.Types {
			btns = append(btns, idButton(t.Name, cbType, t.ID))
		}
		btns = append(btns, keyboard.InlineBtn{Text: "All trainings", Unique: cbType, Data: allTypesPayload})
		return "Choose a training type:", keyboard.InlineButtonsNPerRow(btns, 2, backRow()), false
	case conversation.MenuTrainings:
		btns := make([]keyboard.InlineBtn, 0, len(m.Trainings))
		for _, o := range m.Trainings {
			label := fmt.Sprintf("%s - %s (%s)", o.Name, o.NextStart.In(zone(loc)).Format(slotLayout), plural(o.OpenSlots, "date"))
			btns = append(btns, idButton(label, cbTraining, o.ID))
		}
		return "Choose a training:", keyboard.InlineButtonsNPerRow(btns, 1, backRow()), false
	case conversation.MenuSlots:
		btns := make([]keyboard.InlineBtn, 0, len(m.Slots))
		for _, s := range m.Slots {
			label := fmt.Sprintf("%s · %d left", s.StartTime.In(zone(loc)).Format(slotLayout), s.RemainingCapacity)
			btns = append(btns, idButton(label, cbSlot, s.ID))
		}
		return "Choose a date:", keyboard.InlineButtonsNPerRow(btns, 1, backRow()), false
	case conversation.MenuBookings:
		return bookingsMenu(m, loc)
	}
	return "", nil, false
}

func tierMenu() (string, *tele.ReplyMarkup, bool) {
	var b strings.Builder
	b.WriteString("Choose your plan:\n")
	rows := make([][]keyboard.InlineBtn, 0, 3)
	for _, t := range []model.Tier{model.TierTrial, model.TierPremium} {
		fmt.Fprintf(&b, "\n*%s*: %s", tierName(t), quotaText(subscription.QuotaForTier(t)))
		rows = append(rows, []keyboard.InlineBtn{{Text: tierName(t), Unique: cbTier, Data: string(t)}})
	}
	rows = append(rows, backRow())
	return b.String(), keyboard.InlineButtonsRows(rows...), false
}

func mainHeader(m conversation.Menu) string {
	var usage string
	if m.Quota.Unlimited() {
		usage = fmt.Sprintf("%s active", plural(m.Active, "booking"))
	} else {
		usage = fmt.Sprintf("%d of %d active bookings", m.Active, m.Quota.MaxActive)
	}
	return fmt.Sprintf("*Main menu*\nPlan: %s · %s", tierName(m.Tier), usage)
}

func mainButtons() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{button("📅 Book a training", cbBook)},
		[]keyboard.InlineBtn{button("📋 My bookings", cbMyBookings), button("❓ FAQ", cbFAQ)},
	)
}

func bookingsMenu(m conversation.Menu, loc *time.Location) (string, *tele.ReplyMarkup, bool) {
	var b strings.Builder
	b.WriteString("*Your bookings*\n")
	var cancel []keyboard.InlineBtn
	for _, v := range m.Bookings {
		b.WriteString("\n")
		b.WriteString(bookingLine(v, loc))
		if v.Cancellable(m.Now) {
			label := fmt.Sprintf("✖️ %s %s", v.TrainingName, v.StartTime.In(zone(loc)).Format(slotLayout))
			cancel = append(cancel, idButton(label, cbCancel, v.ID))
		}
	}
	return b.String(), keyboard.InlineButtonsNPerRow(cancel, 1,
		[]keyboard.InlineBtn{button("📅 Book a training", cbBook)},
		backRow(),
	), false
}

func bookingLine(v model.BookingView, loc *time.Location) string {
	mark := "📅"
	if !v.Active() {
		mark = "🚫"
	}
	line := fmt.Sprintf("%s *%s*, %s", mark, format.MD(v.TrainingName), v.StartTime.In(zone(loc)).Format(slotLayout))
	if !v.Active() {
		line += " (cancelled)"
	}
	return line
}

func backRow() []keyboard.InlineBtn {
	return []keyboard.InlineBtn{button("⬅️ Back", cbBack)}
}

func tierName(t model.Tier) string {
	switch t {
	case model.TierTrial:
		return "Trial"
	case model.TierPremium:
		return "Premium"
	}
	return "No plan"
}

func quotaText(q subscription.Quota) string {
	if q.Unlimited() {
		return "unlimited active bookings"
	}
	return plural(q.MaxActive, "active booking") + " at a time"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func zone(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
