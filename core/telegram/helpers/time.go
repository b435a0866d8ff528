package helpers

import (
	"strings"
	"time"
)

var flexibleDateTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-1-2 15:04",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
}

// ParseFlexibleDateTime parses a date with a clock time in any of the layouts
// admins commonly type. A nil loc means time.Local.
func ParseFlexibleDateTime(input string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.Join(strings.Fields(input), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range flexibleDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
