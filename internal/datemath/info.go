package datemath

import "time"

// Info caches the per-year lookup tables for one pivot date. The slices are
// the shared tables above, so an Info is cheap to build once per period.
type Info struct {
	Year           int
	Month          time.Month
	MonthLength    int
	YearLength     int
	NextYearLength int
	// DayOfWeek is the weekday of the pivot date, Monday=0.
	DayOfWeek int
	// YearStartWeekday is the weekday of January 1, Monday=0.
	YearStartWeekday int

	MonthMask       []int
	MonthDayMask    []int
	NegMonthDayMask []int
	WeekdayMask     []int
	MonthRange      []int
}

// NewInfo builds the lookup tables for the civil date year-month-day.
func NewInfo(year int, month time.Month, day int) Info {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	pivot := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	firstWeekday := DayOfWeek(jan1)

	return Info{
		Year:             year,
		Month:            month,
		MonthLength:      MonthLength(year, month),
		YearLength:       YearLength(year),
		NextYearLength:   YearLength(year + 1),
		DayOfWeek:        DayOfWeek(pivot),
		YearStartWeekday: firstWeekday,
		MonthMask:        MonthMask(year),
		MonthDayMask:     MonthDayMask(year, false),
		NegMonthDayMask:  MonthDayMask(year, true),
		WeekdayMask:      WeekdayMask(firstWeekday),
		MonthRange:       MonthRange(year),
	}
}

// MonthBounds returns the half-open day-of-year range [first, end) of month m.
func (i Info) MonthBounds(m time.Month) (int, int) {
	return i.MonthRange[m-1], i.MonthRange[m]
}

// Date returns the civil date at day-of-year index idx, which may run past
// the end of the year.
func (i Info) Date(idx int) (int, time.Month, int) {
	return time.Date(i.Year, time.January, 1+idx, 0, 0, 0, 0, time.UTC).Date()
}
