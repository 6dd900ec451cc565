package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

var weekdayCodes = [7]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// Weekday is a day of the week (Monday=0) with an optional ordinal:
// +N is the Nth such day of the period, -N the Nth from its end.
type Weekday struct {
	day     int
	ordinal mo.Option[int]
}

// Plain weekdays, usable directly in BYDAY and WKST.
var (
	MO = Weekday{day: 0}
	TU = Weekday{day: 1}
	WE = Weekday{day: 2}
	TH = Weekday{day: 3}
	FR = Weekday{day: 4}
	SA = Weekday{day: 5}
	SU = Weekday{day: 6}
)

// NewWeekday builds a weekday from its Monday-based index.
func NewWeekday(day int, ordinal mo.Option[int]) (Weekday, error) {
	if day < 0 || day > 6 {
		return Weekday{}, &Error{Kind: KindInvalidWeekday, Message: fmt.Sprintf("day index %d out of range 0-6", day)}
	}
	if n, ok := ordinal.Get(); ok && (n == 0 || n > 53 || n < -53) {
		return Weekday{}, &Error{Kind: KindInvalidWeekday, Message: fmt.Sprintf("ordinal %d out of range", n)}
	}
	return Weekday{day: day, ordinal: ordinal}, nil
}

// ParseWeekday accepts "MO", "+2TU" or "-1FR".
func ParseWeekday(code string) (Weekday, error) {
	s := strings.ToUpper(strings.TrimSpace(code))
	if len(s) < 2 {
		return Weekday{}, &Error{Kind: KindInvalidWeekday, Message: fmt.Sprintf("unknown weekday %q", code)}
	}

	prefix, name := s[:len(s)-2], s[len(s)-2:]
	day := -1
	for i, c := range weekdayCodes {
		if c == name {
			day = i
			break
		}
	}
	if day < 0 {
		return Weekday{}, &Error{Kind: KindInvalidWeekday, Message: fmt.Sprintf("unknown weekday %q", code)}
	}

	ordinal := mo.None[int]()
	if prefix != "" {
		n, err := strconv.Atoi(prefix)
		if err != nil {
			return Weekday{}, &Error{Kind: KindInvalidWeekday, Message: fmt.Sprintf("bad ordinal in %q", code), Err: err}
		}
		ordinal = mo.Some(n)
	}
	return NewWeekday(day, ordinal)
}

// WeekdayOf returns the plain weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday{day: (int(t.Weekday()) + 6) % 7}
}

// Day returns the Monday-based index.
func (w Weekday) Day() int {
	return w.day
}

// Ordinal returns the signed position, if any.
func (w Weekday) Ordinal() mo.Option[int] {
	return w.ordinal
}

// HasOrdinal reports whether the weekday is positional.
func (w Weekday) HasOrdinal() bool {
	return w.ordinal.IsPresent()
}

// Nth returns w anchored to the nth occurrence in the period.
func (w Weekday) Nth(n int) Weekday {
	return Weekday{day: w.day, ordinal: mo.Some(n)}
}

// TimeWeekday converts to Go's Sunday-based weekday.
func (w Weekday) TimeWeekday() time.Weekday {
	return time.Weekday((w.day + 1) % 7)
}

func (w Weekday) String() string {
	if n, ok := w.ordinal.Get(); ok {
		return strconv.Itoa(n) + weekdayCodes[w.day]
	}
	return weekdayCodes[w.day]
}
