package conversation

import "strings"

// PhoneValidator normalises a phone number and reports whether it is acceptable.
type PhoneValidator func(raw string) (string, bool)

// DefaultPhoneValidator accepts 10 to 15 digits with an optional leading "+".
// Spaces, dots, dashes and parentheses are dropped.
func DefaultPhoneValidator(raw string) (string, bool) {
	var b strings.Builder
	digits := 0
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case strings.ContainsRune(" .-()", r):
		default:
			return "", false
		}
	}
	if digits < 10 || digits > 15 {
		return "", false
	}
	return b.String(), true
}
