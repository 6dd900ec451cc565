// Package datemath holds the Gregorian calendar arithmetic used by the
// recurrence engine. Everything here works on civil dates; time zones never
// enter the picture.
package datemath

import "time"

// Every day-of-year mask is seven entries longer than the year so weekly
// periods and week numbers can look past December 31.
var (
	monthMask366    []int
	monthMask365    []int
	monthDayMask366 []int
	monthDayMask365 []int
	negDayMask366   []int
	negDayMask365   []int
	weekdayCycle    []int

	monthRange366 = []int{0, 31, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335, 366}
	monthRange365 = []int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365}
)

var monthLengths = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func init() {
	for m, n := range monthLengths {
		monthMask366 = append(monthMask366, repeat(m+1, n)...)
		monthDayMask366 = append(monthDayMask366, span(1, n)...)
		negDayMask366 = append(negDayMask366, span(-n, -1)...)
	}
	monthMask366 = append(monthMask366, repeat(1, 7)...)
	monthDayMask366 = append(monthDayMask366, span(1, 7)...)
	negDayMask366 = append(negDayMask366, span(-31, -25)...)

	// Non-leap years drop February 29 (index 59). The negative mask drops
	// the -29 entry of February instead, which sits at index 31.
	monthMask365 = without(monthMask366, 59)
	monthDayMask365 = without(monthDayMask366, 59)
	negDayMask365 = without(negDayMask366, 31)

	for i := 0; i < 55; i++ {
		weekdayCycle = append(weekdayCycle, 0, 1, 2, 3, 4, 5, 6)
	}
}

func repeat(value, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// span returns the inclusive range [from, to].
func span(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func without(src []int, idx int) []int {
	out := make([]int, 0, len(src)-1)
	out = append(out, src[:idx]...)
	return append(out, src[idx+1:]...)
}

// IsLeapYear reports whether year has a February 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// YearLength returns 365 or 366.
func YearLength(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// MonthLength returns the number of days in month of year.
func MonthLength(year int, month time.Month) int {
	if month == time.February && !IsLeapYear(year) {
		return 28
	}
	return monthLengths[month-1]
}

// MonthDayMask maps a zero-based day-of-year index to its day of month. With
// negative set the values count back from the month end (-1 is the last day).
// The returned slice is shared and must not be modified.
func MonthDayMask(year int, negative bool) []int {
	leap := IsLeapYear(year)
	switch {
	case negative && leap:
		return negDayMask366
	case negative:
		return negDayMask365
	case leap:
		return monthDayMask366
	default:
		return monthDayMask365
	}
}

// MonthMask maps a zero-based day-of-year index to its month number (1..12).
// The returned slice is shared and must not be modified.
func MonthMask(year int) []int {
	if IsLeapYear(year) {
		return monthMask366
	}
	return monthMask365
}

// MonthRange holds the first day-of-year index of every month plus the year
// length, so month m spans [r[m-1], r[m]). Shared, read-only.
func MonthRange(year int) []int {
	if IsLeapYear(year) {
		return monthRange366
	}
	return monthRange365
}

// WeekdayMask maps a zero-based day-of-year index to its weekday (Monday=0)
// for a year whose January 1 falls on firstWeekday. It covers at least 378
// days. Shared, read-only.
func WeekdayMask(firstWeekday int) []int {
	return weekdayCycle[firstWeekday:]
}

// DayOfWeek converts Go's Sunday-based weekday to the Monday=0 convention.
func DayOfWeek(t time.Time) int {
	return Pymod(int(t.Weekday())-1, 7)
}

// Pymod is the floored modulo: the result carries the sign of b.
func Pymod(a, b int) int {
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// Divmod is floored division paired with Pymod.
func Divmod(a, b int) (int, int) {
	m := Pymod(a, b)
	return (a - m) / b, m
}

// YearDay returns the zero-based day-of-year index of a civil date.
func YearDay(year int, month time.Month, day int) int {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).YearDay() - 1
}
