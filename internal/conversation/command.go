package conversation

import (
	"fmt"

	"github.com/m3rciful/fitbot/internal/model"
)

// CommandKind tags a Command. The set is closed.
type CommandKind uint8

const (
	CmdStart CommandKind = iota + 1
	CmdText
	CmdContact
	CmdAgree
	CmdChooseTier
	CmdBook
	CmdMyBookings
	CmdFAQ
	CmdSelectType
	CmdSelectTraining
	CmdSelectSlot
	CmdBack
	CmdCancelBooking
	CmdAbort
)

var commandNames = map[CommandKind]string{
	CmdStart:          "start",
	CmdText:           "text",
	CmdContact:        "contact",
	CmdAgree:          "agree",
	CmdChooseTier:     "choose_tier",
	CmdBook:           "book",
	CmdMyBookings:     "my_bookings",
	CmdFAQ:            "faq",
	CmdSelectType:     "select_type",
	CmdSelectTraining: "select_training",
	CmdSelectSlot:     "select_slot",
	CmdBack:           "back",
	CmdCancelBooking:  "cancel_booking",
	CmdAbort:          "abort",
}

func (k CommandKind) String() string {
	if s, ok := commandNames[k]; ok {
		return s
	}
	return fmt.Sprintf("command(%d)", uint8(k))
}

// Command is one user intent produced by the presentation layer.
type Command struct {
	Kind CommandKind
	// ID is the training type, slot or booking id the command refers to.
	ID int64
	// All selects every training type in CmdSelectType.
	All bool
	// Text carries free text or a shared phone number.
	Text string
	Tier model.Tier
}

// Constructors, one per command kind.
func Start() Command                  { return Command{Kind: CmdStart} }
func Text(s string) Command           { return Command{Kind: CmdText, Text: s} }
func Contact(phone string) Command    { return Command{Kind: CmdContact, Text: phone} }
func Agree() Command                  { return Command{Kind: CmdAgree} }
func ChooseTier(t model.Tier) Command { return Command{Kind: CmdChooseTier, Tier: t} }
func Book() Command                   { return Command{Kind: CmdBook} }
func MyBookings() Command             { return Command{Kind: CmdMyBookings} }
func FAQ() Command                    { return Command{Kind: CmdFAQ} }
func SelectType(id int64) Command     { return Command{Kind: CmdSelectType, ID: id} }
func SelectAllTypes() Command         { return Command{Kind: CmdSelectType, All: true} }
func SelectTraining(id int64) Command { return Command{Kind: CmdSelectTraining, ID: id} }
func SelectSlot(id int64) Command     { return Command{Kind: CmdSelectSlot, ID: id} }
func Back() Command                   { return Command{Kind: CmdBack} }
func CancelBooking(id int64) Command  { return Command{Kind: CmdCancelBooking, ID: id} }
func Abort() Command                  { return Command{Kind: CmdAbort} }

// Validate checks the payload shape of c.
func (c Command) Validate() error {
	switch c.Kind {
	case CmdSelectType:
		if !c.All && c.ID <= 0 {
			return fmt.Errorf("%s: id must be positive", c.Kind)
		}
	case CmdSelectTraining, CmdSelectSlot, CmdCancelBooking:
		if c.ID <= 0 {
			return fmt.Errorf("%s: id must be positive", c.Kind)
		}
	case CmdChooseTier:
		if c.Tier != model.TierTrial && c.Tier != model.TierPremium {
			return fmt.Errorf("%s: tier %q cannot be chosen", c.Kind, c.Tier)
		}
	case CmdStart, CmdText, CmdContact, CmdAgree, CmdBook, CmdMyBookings, CmdFAQ, CmdBack, CmdAbort:
	default:
		return fmt.Errorf("unknown command kind %d", uint8(c.Kind))
	}
	return nil
}
