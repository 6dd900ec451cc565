package recurrence

import (
	"slices"
	"time"

	"github.com/samber/mo"
)

// Rule is a validated RRULE plus its RDATE and EXDATE lists. Setters check
// their input and leave the rule untouched on error.
//
// A Rule must not be mutated while a Transform call is reading it; Clone it
// first when that is needed.
type Rule struct {
	freq     Frequency
	interval int
	location *time.Location

	startDate mo.Option[time.Time]
	endDate   mo.Option[time.Time]
	// How DTSTART (and with it DTEND) was written; the instants are unaffected.
	startAllDay   bool
	startFloating bool
	until     mo.Option[time.Time]
	count     mo.Option[int]

	bySecond      []int
	byMinute      []int
	byHour        []int
	byDay         []Weekday
	byMonthDay    []int
	byYearDay     []int
	byWeekNumber  []int
	byMonth       []int
	bySetPosition []int
	weekStart     Weekday

	rDates  []DateInclusion
	exDates []DateExclusion
}

// NewRule returns a rule repeating at freq with interval 1, week start Monday
// and the UTC location.
func NewRule(freq Frequency) *Rule {
	return &Rule{
		freq:      freq,
		interval:  1,
		location:  time.UTC,
		weekStart: MO,
	}
}

// Freq returns the rule frequency.
func (r *Rule) Freq() Frequency { return r.freq }

// Interval returns the step between periods.
func (r *Rule) Interval() int { return r.interval }

// Location returns the zone floating date values are read in.
func (r *Rule) Location() *time.Location { return r.location }

// StartDate returns DTSTART, if set.
func (r *Rule) StartDate() mo.Option[time.Time] { return r.startDate }

// EndDate returns DTEND, if set.
func (r *Rule) EndDate() mo.Option[time.Time] { return r.endDate }

// Until returns the UNTIL bound, if set.
func (r *Rule) Until() mo.Option[time.Time] { return r.until }

// Count returns the COUNT bound, if set.
func (r *Rule) Count() mo.Option[int] { return r.count }

// BY-rule accessors return copies.

func (r *Rule) BySecond() []int { return slices.Clone(r.bySecond) }

func (r *Rule) ByMinute() []int { return slices.Clone(r.byMinute) }

func (r *Rule) ByHour() []int { return slices.Clone(r.byHour) }

func (r *Rule) ByDay() []Weekday { return slices.Clone(r.byDay) }

func (r *Rule) ByMonthDay() []int { return slices.Clone(r.byMonthDay) }

func (r *Rule) ByYearDay() []int { return slices.Clone(r.byYearDay) }

func (r *Rule) ByWeekNumber() []int { return slices.Clone(r.byWeekNumber) }

func (r *Rule) ByMonth() []int { return slices.Clone(r.byMonth) }

func (r *Rule) BySetPosition() []int { return slices.Clone(r.bySetPosition) }

// WeekStart returns WKST.
func (r *Rule) WeekStart() Weekday { return r.weekStart }

// RDates returns a copy of the inclusion list.
func (r *Rule) RDates() []DateInclusion { return slices.Clone(r.rDates) }

// ExDates returns a copy of the exclusion list.
func (r *Rule) ExDates() []DateExclusion { return slices.Clone(r.exDates) }

// SetFreq changes the frequency. Positional BYDAY values already on the rule
// pin it to MONTHLY or coarser.
func (r *Rule) SetFreq(freq Frequency) error {
	if !freq.valid() {
		return ruleError("unknown frequency %d", int(freq))
	}
	if freq > Monthly && hasOrdinal(r.byDay) {
		return &Error{Kind: KindInvalidRule, Field: "FREQ", Message: "positional BYDAY requires MONTHLY or YEARLY"}
	}
	r.freq = freq
	return nil
}

// SetInterval sets the period step; it must be at least 1.
func (r *Rule) SetInterval(interval int) error {
	if interval < 1 {
		return fieldError("INTERVAL", "must be a positive integer, got %d", interval)
	}
	r.interval = interval
	return nil
}

// SetLocation sets the zone floating values are interpreted in.
func (r *Rule) SetLocation(loc *time.Location) error {
	if loc == nil {
		return fieldError("TZID", "location is required")
	}
	r.location = loc
	return nil
}

// SetStartDate sets DTSTART.
func (r *Rule) SetStartDate(t time.Time) {
	r.startDate = mo.Some(t)
}

// ClearStartDate removes DTSTART; Transform then starts from the engine clock.
func (r *Rule) ClearStartDate() {
	r.startDate = mo.None[time.Time]()
	r.startAllDay, r.startFloating = false, false
}

// SetStartForm records whether DTSTART is a DATE value and whether a
// DATE-TIME value is floating, so writers can reproduce it.
func (r *Rule) SetStartForm(allDay, floating bool) {
	r.startAllDay = allDay
	r.startFloating = floating && !allDay
}

// StartIsAllDay reports whether DTSTART was given as a DATE value.
func (r *Rule) StartIsAllDay() bool { return r.startAllDay }

// StartIsFloating reports whether DTSTART was a DATE-TIME with neither a
// zone nor a trailing Z.
func (r *Rule) StartIsFloating() bool { return r.startFloating }

// SetEndDate sets DTEND; its distance from DTSTART is the occurrence length.
func (r *Rule) SetEndDate(t time.Time) {
	r.endDate = mo.Some(t)
}

// ClearEndDate removes DTEND.
func (r *Rule) ClearEndDate() {
	r.endDate = mo.None[time.Time]()
}

// SetUntil bounds the rule by date and drops any COUNT.
func (r *Rule) SetUntil(t time.Time) {
	r.until = mo.Some(t)
	r.count = mo.None[int]()
}

// ClearUntil removes the UNTIL bound.
func (r *Rule) ClearUntil() {
	r.until = mo.None[time.Time]()
}

// SetCount bounds the rule by number of occurrences and drops any UNTIL.
func (r *Rule) SetCount(count int) error {
	if count < 0 {
		return fieldError("COUNT", "must not be negative, got %d", count)
	}
	r.count = mo.Some(count)
	r.until = mo.None[time.Time]()
	return nil
}

// ClearCount removes the COUNT bound.
func (r *Rule) ClearCount() {
	r.count = mo.None[int]()
}

func (r *Rule) SetBySecond(values []int) error {
	if err := checkRange("BYSECOND", values, 0, 59, false); err != nil {
		return err
	}
	r.bySecond = slices.Clone(values)
	return nil
}

func (r *Rule) SetByMinute(values []int) error {
	if err := checkRange("BYMINUTE", values, 0, 59, false); err != nil {
		return err
	}
	r.byMinute = slices.Clone(values)
	return nil
}

func (r *Rule) SetByHour(values []int) error {
	if err := checkRange("BYHOUR", values, 0, 23, false); err != nil {
		return err
	}
	r.byHour = slices.Clone(values)
	return nil
}

// SetByDay sets BYDAY. The list must be non-empty and either all positional
// or all plain; positional entries need MONTHLY or YEARLY.
func (r *Rule) SetByDay(days []Weekday) error {
	if len(days) == 0 {
		return &Error{Kind: KindInvalidRule, Field: "BYDAY", Message: "at least one weekday is required"}
	}
	withOrdinal := 0
	for _, d := range days {
		if d.HasOrdinal() {
			withOrdinal++
		}
	}
	if withOrdinal != 0 && withOrdinal != len(days) {
		return &Error{Kind: KindInvalidRule, Field: "BYDAY", Message: "cannot mix positional and plain weekdays"}
	}
	if withOrdinal != 0 && r.freq > Monthly {
		return &Error{Kind: KindInvalidRule, Field: "BYDAY", Message: "positional weekdays require MONTHLY or YEARLY"}
	}
	r.byDay = slices.Clone(days)
	return nil
}

// ClearByDay removes BYDAY.
func (r *Rule) ClearByDay() {
	r.byDay = nil
}

func (r *Rule) SetByMonthDay(values []int) error {
	if err := checkRange("BYMONTHDAY", values, 1, 31, true); err != nil {
		return err
	}
	r.byMonthDay = slices.Clone(values)
	return nil
}

func (r *Rule) SetByYearDay(values []int) error {
	if err := checkRange("BYYEARDAY", values, 1, 366, true); err != nil {
		return err
	}
	r.byYearDay = slices.Clone(values)
	return nil
}

func (r *Rule) SetByWeekNumber(values []int) error {
	if err := checkRange("BYWEEKNO", values, 1, 53, true); err != nil {
		return err
	}
	r.byWeekNumber = slices.Clone(values)
	return nil
}

func (r *Rule) SetByMonth(values []int) error {
	if err := checkRange("BYMONTH", values, 1, 12, false); err != nil {
		return err
	}
	r.byMonth = slices.Clone(values)
	return nil
}

func (r *Rule) SetBySetPosition(values []int) error {
	if err := checkRange("BYSETPOS", values, 1, 366, true); err != nil {
		return err
	}
	r.bySetPosition = slices.Clone(values)
	return nil
}

// SetWeekStart sets WKST; it must be a plain weekday.
func (r *Rule) SetWeekStart(w Weekday) error {
	if w.HasOrdinal() || w.day < 0 || w.day > 6 {
		return fieldError("WKST", "must be one of MO, TU, WE, TH, FR, SA, SU, got %s", w)
	}
	r.weekStart = w
	return nil
}

// SetRDates replaces the inclusion list.
func (r *Rule) SetRDates(dates []DateInclusion) {
	r.rDates = slices.Clone(dates)
}

// SetExDates replaces the exclusion list.
func (r *Rule) SetExDates(dates []DateExclusion) {
	r.exDates = slices.Clone(dates)
}

// RepeatsIndefinitely is true when neither COUNT, UNTIL nor DTEND is set.
func (r *Rule) RepeatsIndefinitely() bool {
	return r.count.IsAbsent() && r.until.IsAbsent() && r.endDate.IsAbsent()
}

// Validate reports structural problems the individual setters cannot see.
func (r *Rule) Validate() error {
	if !r.freq.valid() {
		return ruleError("unknown frequency %d", int(r.freq))
	}
	if r.interval < 1 {
		return fieldError("INTERVAL", "must be a positive integer, got %d", r.interval)
	}
	if r.location == nil {
		return fieldError("TZID", "location is required")
	}
	if r.until.IsPresent() && r.count.IsPresent() {
		return ruleError("UNTIL and COUNT are mutually exclusive")
	}
	if len(r.bySetPosition) > 0 && !r.hasByRule() {
		return &Error{Kind: KindInvalidRule, Field: "BYSETPOS", Message: "requires another BY rule"}
	}
	if hasOrdinal(r.byDay) {
		if r.freq > Monthly {
			return &Error{Kind: KindInvalidRule, Field: "BYDAY", Message: "positional weekdays require MONTHLY or YEARLY"}
		}
		for _, d := range r.byDay {
			if !d.HasOrdinal() {
				return &Error{Kind: KindInvalidRule, Field: "BYDAY", Message: "cannot mix positional and plain weekdays"}
			}
		}
	}
	return nil
}

func (r *Rule) hasByRule() bool {
	return len(r.bySecond) > 0 || len(r.byMinute) > 0 || len(r.byHour) > 0 ||
		len(r.byDay) > 0 || len(r.byMonthDay) > 0 || len(r.byYearDay) > 0 ||
		len(r.byWeekNumber) > 0 || len(r.byMonth) > 0
}

// Clone returns a deep copy.
func (r *Rule) Clone() *Rule {
	c := *r
	c.bySecond = slices.Clone(r.bySecond)
	c.byMinute = slices.Clone(r.byMinute)
	c.byHour = slices.Clone(r.byHour)
	c.byDay = slices.Clone(r.byDay)
	c.byMonthDay = slices.Clone(r.byMonthDay)
	c.byYearDay = slices.Clone(r.byYearDay)
	c.byWeekNumber = slices.Clone(r.byWeekNumber)
	c.byMonth = slices.Clone(r.byMonth)
	c.bySetPosition = slices.Clone(r.bySetPosition)
	c.rDates = slices.Clone(r.rDates)
	c.exDates = slices.Clone(r.exDates)
	return &c
}

// InLocation returns a copy whose location and stored dates are converted
// to loc. Wall-clock values change; instants do not.
func (r *Rule) InLocation(loc *time.Location) *Rule {
	c := r.Clone()
	c.location = loc
	c.startDate = mapTime(c.startDate, loc)
	c.endDate = mapTime(c.endDate, loc)
	c.until = mapTime(c.until, loc)
	for i := range c.rDates {
		c.rDates[i].Date = c.rDates[i].Date.In(loc)
	}
	for i := range c.exDates {
		c.exDates[i].Date = c.exDates[i].Date.In(loc)
	}
	return c
}

func mapTime(o mo.Option[time.Time], loc *time.Location) mo.Option[time.Time] {
	if t, ok := o.Get(); ok {
		return mo.Some(t.In(loc))
	}
	return o
}

func hasOrdinal(days []Weekday) bool {
	for _, d := range days {
		if d.HasOrdinal() {
			return true
		}
	}
	return false
}

// checkRange validates lo..hi, and -hi..-lo as well when signed is set.
func checkRange(field string, values []int, lo, hi int, signed bool) error {
	for _, v := range values {
		if v >= lo && v <= hi {
			continue
		}
		if signed && v <= -lo && v >= -hi {
			continue
		}
		if signed {
			return fieldError(field, "value %d outside %d..%d or %d..%d", v, lo, hi, -hi, -lo)
		}
		return fieldError(field, "value %d outside %d..%d", v, lo, hi)
	}
	return nil
}
