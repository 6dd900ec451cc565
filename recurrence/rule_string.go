package recurrence

import (
	"strconv"
	"strings"
	"time"
)

// ParseRule reads an RRULE string such as
// "FREQ=MONTHLY;COUNT=5;BYDAY=-1FR;DTSTART=20130131T090000". A leading
// "RRULE:" is stripped. Floating values are read in loc (UTC when nil).
func ParseRule(s string, loc *time.Location) (*Rule, error) {
	text := strings.TrimSpace(s)
	if len(text) >= 6 && strings.EqualFold(text[:6], "RRULE:") {
		text = text[6:]
	}
	if text == "" {
		return nil, ruleError("empty rule")
	}

	parts := make(map[string]string)
	for _, part := range strings.Split(text, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, ruleError("malformed rule part %q", part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if _, dup := parts[key]; dup {
			return nil, ruleError("duplicate rule part %s", key)
		}
		parts[key] = value
	}
	return NewRuleFromParts(parts, loc)
}

// String renders the rule in canonical part order. Dates are written in the
// rule location, with a trailing Z when that location is UTC and a TZID
// prefix when a value carries another zone.
func (r *Rule) String() string {
	var parts []string
	add := func(key, value string) {
		parts = append(parts, key+"="+value)
	}

	add(PartFreq, r.freq.String())
	if r.interval != 1 {
		add(PartInterval, strconv.Itoa(r.interval))
	}
	if n, ok := r.count.Get(); ok {
		add(PartCount, strconv.Itoa(n))
	}
	if t, ok := r.until.Get(); ok {
		add(PartUntil, r.formatDate(t, true, t.Location() == time.UTC))
	}
	for _, f := range []struct {
		key    string
		values []int
	}{
		{PartBySecond, r.bySecond},
		{PartByMinute, r.byMinute},
		{PartByHour, r.byHour},
	} {
		if len(f.values) > 0 {
			add(f.key, joinInts(f.values))
		}
	}
	if len(r.byDay) > 0 {
		codes := make([]string, len(r.byDay))
		for i, d := range r.byDay {
			codes[i] = d.String()
		}
		add(PartByDay, strings.Join(codes, ","))
	}
	for _, f := range []struct {
		key    string
		values []int
	}{
		{PartByMonthDay, r.byMonthDay},
		{PartByYearDay, r.byYearDay},
		{PartByWeekNo, r.byWeekNumber},
		{PartByMonth, r.byMonth},
		{PartBySetPos, r.bySetPosition},
	} {
		if len(f.values) > 0 {
			add(f.key, joinInts(f.values))
		}
	}
	if r.weekStart != MO {
		add(PartWeekStart, r.weekStart.String())
	}
	if t, ok := r.startDate.Get(); ok {
		add(PartStart, r.formatDate(t, true, t.Location() == time.UTC))
	}
	if t, ok := r.endDate.Get(); ok {
		add(PartEnd, r.formatDate(t, true, t.Location() == time.UTC))
	}
	if len(r.rDates) > 0 {
		values := make([]listDate, len(r.rDates))
		for i, d := range r.rDates {
			values[i] = listDate{d.Date, d.HasTime, d.IsUTCExplicit}
		}
		add(PartRDate, r.formatDateList(values))
	}
	if len(r.exDates) > 0 {
		values := make([]listDate, len(r.exDates))
		for i, d := range r.exDates {
			values[i] = listDate{d.Date, d.HasTime, d.IsUTCExplicit}
		}
		add(PartExDate, r.formatDateList(values))
	}
	return strings.Join(parts, ";")
}

func (r *Rule) formatDate(t time.Time, hasTime, utc bool) string {
	if utc {
		return t.UTC().Format(layoutDateTime) + "Z"
	}
	if sameZone(t.Location(), r.location) {
		return t.Format(dateLayout(hasTime))
	}
	return zonedDate(t, hasTime)
}

type listDate struct {
	t       time.Time
	hasTime bool
	utc     bool
}

// formatDateList joins RDATE or EXDATE values. A leading TZID is shared by
// the bare entries after it, so once any entry needs a zone every non-UTC
// entry is written with its own.
func (r *Rule) formatDateList(values []listDate) string {
	zoned := false
	for _, v := range values {
		if !v.utc && !sameZone(v.t.Location(), r.location) {
			zoned = true
			break
		}
	}
	out := make([]string, len(values))
	for i, v := range values {
		if zoned && !v.utc {
			out[i] = zonedDate(v.t, v.hasTime)
		} else {
			out[i] = r.formatDate(v.t, v.hasTime, v.utc)
		}
	}
	return strings.Join(out, ",")
}

func zonedDate(t time.Time, hasTime bool) string {
	return "TZID=" + t.Location().String() + ":" + t.Format(dateLayout(hasTime))
}

func dateLayout(hasTime bool) string {
	if hasTime {
		return layoutDateTime
	}
	return layoutDate
}

func sameZone(a, b *time.Location) bool {
	return a == b || a.String() == b.String()
}

func joinInts(values []int) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}
