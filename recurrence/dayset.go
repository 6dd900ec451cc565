package recurrence

import (
	"slices"
	"time"

	"github.com/cyp0633/librecur/internal/datemath"
)

// clock is a time of day.
type clock struct {
	hour, minute, second int
}

func (c clock) seconds() int {
	return c.hour*3600 + c.minute*60 + c.second
}

func compareClock(a, b clock) int {
	return a.seconds() - b.seconds()
}

// daySet is the candidate day-of-year indices of one period. start and end
// bound the period even after filtering empties days.
type daySet struct {
	days       []int
	start, end int
}

// plan is a rule normalized for one expansion: implicit BY values filled in
// from the start date and BYMONTHDAY/BYDAY split by kind.
type plan struct {
	freq      Frequency
	interval  int
	start     time.Time
	weekStart int

	until    time.Time
	hasUntil bool
	count    int
	hasCount bool

	byMonth       []int
	byWeekNumber  []int
	byYearDay     []int
	byMonthDay    []int
	byNegMonthDay []int
	byWeekday     []int
	byRelWeekday  []Weekday
	byHour        []int
	byMinute      []int
	bySecond      []int
	bySetPosition []int

	// fixLastDay lets the last day of a month stand in for an implicit
	// month day the month does not have.
	fixLastDay bool

	// timeSet is the fixed time set of rules coarser than hourly.
	timeSet []clock

	weekNoYear int
	weekNoMask []bool
}

func newPlan(rule *Rule, start time.Time, lastDayFix bool) *plan {
	p := &plan{
		freq:          rule.freq,
		interval:      rule.interval,
		start:         start,
		weekStart:     rule.weekStart.day,
		byMonth:       slices.Clone(rule.byMonth),
		byWeekNumber:  slices.Clone(rule.byWeekNumber),
		byYearDay:     slices.Clone(rule.byYearDay),
		byHour:        slices.Clone(rule.byHour),
		byMinute:      slices.Clone(rule.byMinute),
		bySecond:      slices.Clone(rule.bySecond),
		bySetPosition: slices.Clone(rule.bySetPosition),
		weekNoYear:    -1,
	}
	if t, ok := rule.until.Get(); ok {
		p.until, p.hasUntil = t, true
	}
	if n, ok := rule.count.Get(); ok {
		p.count, p.hasCount = n, true
	}

	monthDays := rule.byMonthDay
	weekdays := rule.byDay
	if len(rule.byWeekNumber) == 0 && len(rule.byYearDay) == 0 && len(monthDays) == 0 && len(weekdays) == 0 {
		switch p.freq {
		case Yearly:
			if len(p.byMonth) == 0 {
				p.byMonth = []int{int(start.Month())}
			}
			monthDays = []int{start.Day()}
			p.fixLastDay = lastDayFix && start.Day() > 28
		case Monthly:
			monthDays = []int{start.Day()}
			p.fixLastDay = lastDayFix && start.Day() > 28
		case Weekly:
			weekdays = []Weekday{WeekdayOf(start)}
		}
	}

	for _, d := range monthDays {
		if d > 0 {
			p.byMonthDay = append(p.byMonthDay, d)
		} else {
			p.byNegMonthDay = append(p.byNegMonthDay, d)
		}
	}
	for _, w := range weekdays {
		if w.HasOrdinal() && p.freq <= Monthly {
			p.byRelWeekday = append(p.byRelWeekday, w)
		} else {
			p.byWeekday = append(p.byWeekday, w.day)
		}
	}

	if len(p.byHour) == 0 && p.freq < Hourly {
		p.byHour = []int{start.Hour()}
	}
	if len(p.byMinute) == 0 && p.freq < Minutely {
		p.byMinute = []int{start.Minute()}
	}
	if len(p.bySecond) == 0 && p.freq < Secondly {
		p.bySecond = []int{start.Second()}
	}

	if p.freq < Hourly {
		for _, h := range p.byHour {
			for _, m := range p.byMinute {
				for _, s := range p.bySecond {
					p.timeSet = append(p.timeSet, clock{h, m, s})
				}
			}
		}
		slices.SortFunc(p.timeSet, compareClock)
	}
	return p
}

// daySet returns the days of the period containing year-month-day.
func (p *plan) daySet(info datemath.Info, year int, month time.Month, day int) daySet {
	switch p.freq {
	case Yearly:
		return rangeSet(0, info.YearLength)
	case Monthly:
		first, end := info.MonthBounds(month)
		return rangeSet(first, end)
	case Weekly:
		// The week may run into the next year; the masks are long enough.
		i := datemath.YearDay(year, month, day)
		set := daySet{start: i}
		for j := 0; j < 7; j++ {
			set.days = append(set.days, i)
			i++
			if info.WeekdayMask[i] == p.weekStart {
				break
			}
		}
		set.end = i
		return set
	default:
		i := datemath.YearDay(year, month, day)
		return daySet{days: []int{i}, start: i, end: i + 1}
	}
}

func rangeSet(first, end int) daySet {
	set := daySet{days: make([]int, 0, end-first), start: first, end: end}
	for i := first; i < end; i++ {
		set.days = append(set.days, i)
	}
	return set
}

// initialTimeSet is the time set of the first period. A sub-daily start whose
// clock fails its own BY rules contributes nothing.
func (p *plan) initialTimeSet(hour, minute, second int) []clock {
	if p.freq < Hourly {
		return p.timeSet
	}
	if (len(p.byHour) > 0 && !slices.Contains(p.byHour, hour)) ||
		(p.freq >= Minutely && len(p.byMinute) > 0 && !slices.Contains(p.byMinute, minute)) ||
		(p.freq >= Secondly && len(p.bySecond) > 0 && !slices.Contains(p.bySecond, second)) {
		return nil
	}
	return p.subDailyTimeSet(hour, minute, second)
}

// subDailyTimeSet expands the units below the frequency for one step.
func (p *plan) subDailyTimeSet(hour, minute, second int) []clock {
	var set []clock
	switch p.freq {
	case Hourly:
		for _, m := range p.byMinute {
			for _, s := range p.bySecond {
				set = append(set, clock{hour, m, s})
			}
		}
	case Minutely:
		for _, s := range p.bySecond {
			set = append(set, clock{hour, minute, s})
		}
	default:
		set = []clock{{hour, minute, second}}
	}
	slices.SortFunc(set, compareClock)
	return set
}

// filter returns the days of set passing every BY rule.
func (p *plan) filter(info datemath.Info, set daySet) []int {
	var weekNo []bool
	if len(p.byWeekNumber) > 0 {
		weekNo = p.weekNumbers(info)
	}
	var relative []bool
	if len(p.byRelWeekday) > 0 {
		relative = p.relativeWeekdayMask(info)
	}

	kept := make([]int, 0, len(set.days))
	for _, i := range set.days {
		if len(p.byMonth) > 0 && !slices.Contains(p.byMonth, info.MonthMask[i]) {
			continue
		}
		if weekNo != nil && !weekNo[i] {
			continue
		}
		if len(p.byWeekday) > 0 && !slices.Contains(p.byWeekday, info.WeekdayMask[i]) {
			continue
		}
		if relative != nil && (i >= len(relative) || !relative[i]) {
			continue
		}
		if (len(p.byMonthDay) > 0 || len(p.byNegMonthDay) > 0) && !p.matchesMonthDay(info, i) {
			continue
		}
		if len(p.byYearDay) > 0 && !p.matchesYearDay(info, i) {
			continue
		}
		kept = append(kept, i)
	}
	return kept
}

func (p *plan) matchesMonthDay(info datemath.Info, i int) bool {
	if slices.Contains(p.byMonthDay, info.MonthDayMask[i]) || slices.Contains(p.byNegMonthDay, info.NegMonthDayMask[i]) {
		return true
	}
	if !p.fixLastDay || info.NegMonthDayMask[i] != -1 {
		return false
	}
	last := info.MonthDayMask[i]
	return slices.ContainsFunc(p.byMonthDay, func(d int) bool { return d > last })
}

// matchesYearDay also handles days of a weekly period that spill into the
// next year.
func (p *plan) matchesYearDay(info datemath.Info, i int) bool {
	if i < info.YearLength {
		return slices.Contains(p.byYearDay, i+1) || slices.Contains(p.byYearDay, i-info.YearLength)
	}
	return slices.Contains(p.byYearDay, i+1-info.YearLength) ||
		slices.Contains(p.byYearDay, i-info.YearLength-info.NextYearLength)
}

// weekNumbers returns the BYWEEKNO mask of info's year, built once per year.
func (p *plan) weekNumbers(info datemath.Info) []bool {
	if p.weekNoYear != info.Year {
		p.weekNoMask = p.weekNumberMask(info)
		p.weekNoYear = info.Year
	}
	return p.weekNoMask
}

// weekNumberMask marks the days of the requested ISO-style weeks, counted
// from the week start. Week 1 is the first week with at least four days in
// the year; days before it belong to the last week of the previous year.
func (p *plan) weekNumberMask(info datemath.Info) []bool {
	mask := make([]bool, info.YearLength+7)
	wkst := p.weekStart

	// Offset of the first week start in the year.
	firstWkst := datemath.Pymod(7-info.YearStartWeekday+wkst, 7)
	no1Wkst := firstWkst
	var weekYearLen int
	if no1Wkst >= 4 {
		no1Wkst = 0
		weekYearLen = info.YearLength + datemath.Pymod(info.YearStartWeekday-wkst, 7)
	} else {
		weekYearLen = info.YearLength - no1Wkst
	}
	div, mod := datemath.Divmod(weekYearLen, 7)
	numWeeks := div + mod/4

	markWeek := func(i int) {
		for j := 0; j < 7 && i < len(mask); j++ {
			mask[i] = true
			i++
			if i >= len(info.WeekdayMask) || info.WeekdayMask[i] == wkst {
				return
			}
		}
	}
	weekOffset := func(n int) int {
		i := no1Wkst + (n-1)*7
		if no1Wkst != firstWkst {
			i -= 7 - firstWkst
		}
		return i
	}

	for _, n := range p.byWeekNumber {
		if n < 0 {
			n += numWeeks + 1
		}
		if n <= 0 || n > numWeeks {
			continue
		}
		if n == 1 {
			markWeek(no1Wkst)
		} else {
			markWeek(weekOffset(n))
		}
	}

	// Week 1 of next year may start in the last days of this one.
	if slices.Contains(p.byWeekNumber, 1) {
		if i := weekOffset(numWeeks + 1); i < info.YearLength {
			markWeek(i)
		}
	}

	// Days before week 1 belong to the last week of the previous year.
	if no1Wkst != 0 {
		lastWeek := -1
		if !slices.Contains(p.byWeekNumber, -1) {
			prevStart := datemath.DayOfWeek(time.Date(info.Year-1, time.January, 1, 0, 0, 0, 0, time.UTC))
			prevNo1 := datemath.Pymod(7-prevStart+wkst, 7)
			if prevNo1 >= 4 {
				prevLen := datemath.YearLength(info.Year - 1)
				lastWeek = 52 + datemath.Pymod(prevLen+datemath.Pymod(prevStart-wkst, 7), 7)/4
			} else {
				lastWeek = 52 + datemath.Pymod(info.YearLength-no1Wkst, 7)/4
			}
		}
		if slices.Contains(p.byWeekNumber, lastWeek) {
			for i := 0; i < no1Wkst; i++ {
				mask[i] = true
			}
		}
	}
	return mask
}

// relativeWeekdayMask marks the days matching positional BYDAY values within
// each month of the period, or the whole year for a yearly rule without
// BYMONTH.
func (p *plan) relativeWeekdayMask(info datemath.Info) []bool {
	var ranges [][2]int
	switch p.freq {
	case Yearly:
		if len(p.byMonth) > 0 {
			for _, m := range p.byMonth {
				first, end := info.MonthBounds(time.Month(m))
				ranges = append(ranges, [2]int{first, end})
			}
		} else {
			ranges = [][2]int{{0, info.YearLength}}
		}
	case Monthly:
		first, end := info.MonthBounds(info.Month)
		ranges = [][2]int{{first, end}}
	default:
		return nil
	}

	mask := make([]bool, info.YearLength)
	for _, r := range ranges {
		first, last := r[0], r[1]-1
		for _, w := range p.byRelWeekday {
			n := w.ordinal.OrElse(1)
			var i int
			if n < 0 {
				i = last + (n+1)*7
				if i < first {
					continue
				}
				i -= datemath.Pymod(info.WeekdayMask[i]-w.day, 7)
			} else {
				i = first + (n-1)*7
				if i > last {
					continue
				}
				i += datemath.Pymod(7-info.WeekdayMask[i]+w.day, 7)
			}
			if first <= i && i <= last {
				mask[i] = true
			}
		}
	}
	return mask
}

// candidates combines the filtered days with the time set, honouring
// BYSETPOS. Results are chronological and free of duplicates.
func (p *plan) candidates(info datemath.Info, days []int, times []clock, loc *time.Location) []time.Time {
	if len(days) == 0 || len(times) == 0 {
		return nil
	}

	at := func(day int, c clock) time.Time {
		y, m, d := info.Date(day)
		return time.Date(y, m, d, c.hour, c.minute, c.second, 0, loc)
	}

	if len(p.bySetPosition) == 0 {
		out := make([]time.Time, 0, len(days)*len(times))
		for _, day := range days {
			for _, c := range times {
				out = append(out, at(day, c))
			}
		}
		return out
	}

	var out []time.Time
	for _, pos := range p.bySetPosition {
		var dayPos, timePos int
		if pos < 0 {
			dayPos, timePos = datemath.Divmod(pos, len(times))
		} else {
			dayPos, timePos = datemath.Divmod(pos-1, len(times))
		}
		if dayPos < 0 {
			dayPos += len(days)
		}
		if dayPos < 0 || dayPos >= len(days) {
			continue
		}
		t := at(days[dayPos], times[timePos])
		if !slices.ContainsFunc(out, t.Equal) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, time.Time.Compare)
	return out
}
