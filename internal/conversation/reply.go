package conversation

import (
	"time"

	"github.com/m3rciful/fitbot/core/telegram/state"
	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/model"
	"github.com/m3rciful/fitbot/internal/subscription"
)

// MenuKind says which screen the presentation layer should draw.
type MenuKind uint8

const (
	MenuNone MenuKind = iota
	MenuAgreement
	MenuPhone
	MenuTier
	MenuMain
	MenuFAQ
	MenuTypes
	MenuTrainings
	MenuSlots
	MenuBookings
)

// Menu is the semantic content of a screen. Only the fields of its Kind are set.
type Menu struct {
	Kind MenuKind

	// MenuMain and MenuFAQ.
	Tier   model.Tier
	Quota  subscription.Quota
	Active int

	Types     []model.TrainingType
	Trainings []model.TrainingOption
	Slots     []model.SlotView
	Bookings  []model.BookingView

	// Now is the instant the menu was built, for past and cancellable checks.
	Now time.Time
}

// Notice is a one-off message shown above the menu.
type Notice uint8

const (
	NoticeNone Notice = iota
	NoticeWelcome
	NoticeRegistered
	NoticeAgreementRequired
	NoticeInvalidPhone
	NoticeUnexpectedInput
	NoticeSessionExpired
	NoticeAborted
	NoticeNoTrainings
	NoticeNoDates
	NoticeNoBookings
	NoticeUnknownType
	NoticeBooked
	NoticeReleased
	NoticeDuplicateBooking
	NoticeQuotaExceeded
	NoticeSlotFull
	NoticeUnknownSlot
	NoticeUnknownBooking
	NoticeNotOwner
	NoticeAlreadyCancelled
	NoticeInternal
)

// Reply is the semantic result of one handled event.
type Reply struct {
	State  state.State
	Menu   Menu
	Notice Notice
	// Booking is the subject of NoticeBooked and NoticeReleased.
	Booking *model.BookingView
}

// noticeFor maps an engine failure to the notice shown to the user.
func noticeFor(kind booking.Kind) Notice {
	switch kind {
	case booking.KindDuplicateBooking:
		return NoticeDuplicateBooking
	case booking.KindQuotaExceeded:
		return NoticeQuotaExceeded
	case booking.KindSlotFull:
		return NoticeSlotFull
	case booking.KindUnknownSlot:
		return NoticeUnknownSlot
	case booking.KindUnknownBooking:
		return NoticeUnknownBooking
	case booking.KindNotOwner:
		return NoticeNotOwner
	case booking.KindAlreadyCancelled:
		return NoticeAlreadyCancelled
	case booking.KindNone:
		return NoticeNone
	default:
		return NoticeInternal
	}
}
