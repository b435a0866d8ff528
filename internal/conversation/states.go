// Package conversation drives a user through registration and the booking
// dialogue. Every inbound command is dispatched through one state by command
// table; only the final slot selection and cancellations touch bookings.
package conversation

import "github.com/m3rciful/fitbot/core/telegram/state"

// Conversation states.
const (
	StateAwaitingAgreement  state.State = "awaiting_agreement"
	StateAwaitingPhone      state.State = "awaiting_phone"
	StateAwaitingTierChoice state.State = "awaiting_tier"
	StateMenuIdle           state.State = "menu_idle"
	StateChoosingType       state.State = "choosing_type"
	StateChoosingTraining   state.State = "choosing_training"
	StateChoosingSlot       state.State = "choosing_slot"
	StateViewingBookings    state.State = "viewing_bookings"
)

// Session keys.
const (
	keyType     = "type"
	keyTraining = "training"
	keyPhone    = "phone"

	allTypes = "all"
)

// registering reports whether st belongs to the first-contact flow.
func registering(st state.State) bool {
	switch st {
	case StateAwaitingAgreement, StateAwaitingPhone, StateAwaitingTierChoice:
		return true
	}
	return false
}
