package recurrence

import (
	"strconv"
	"strings"
	"time"
)

// Rule part keys accepted by NewRuleFromParts.
const (
	PartFreq       = "FREQ"
	PartInterval   = "INTERVAL"
	PartUntil      = "UNTIL"
	PartCount      = "COUNT"
	PartBySecond   = "BYSECOND"
	PartByMinute   = "BYMINUTE"
	PartByHour     = "BYHOUR"
	PartByDay      = "BYDAY"
	PartByMonthDay = "BYMONTHDAY"
	PartByYearDay  = "BYYEARDAY"
	PartByWeekNo   = "BYWEEKNO"
	PartByMonth    = "BYMONTH"
	PartBySetPos   = "BYSETPOS"
	PartWeekStart  = "WKST"
	PartRDate      = "RDATE"
	PartExDate     = "EXDATE"
	PartStart      = "DTSTART"
	PartEnd        = "DTEND"
)

// partOrder is the order parts are applied and rendered in.
var partOrder = []string{
	PartFreq, PartInterval, PartCount, PartUntil,
	PartBySecond, PartByMinute, PartByHour, PartByDay,
	PartByMonthDay, PartByYearDay, PartByWeekNo, PartByMonth, PartBySetPos,
	PartWeekStart, PartStart, PartEnd, PartRDate, PartExDate,
}

const (
	layoutDate     = "20060102"
	layoutDateTime = "20060102T150405"
)

// NewRuleFromParts validates a key/value map of RRULE parts, as produced by a
// parser, into a Rule. Floating date values are read in loc (UTC when nil).
// Keys starting with "X-" are ignored.
func NewRuleFromParts(parts map[string]string, loc *time.Location) (*Rule, error) {
	if loc == nil {
		loc = time.UTC
	}

	norm := make(map[string]string, len(parts))
	for k, v := range parts {
		key := strings.ToUpper(strings.TrimSpace(k))
		if strings.HasPrefix(key, "X-") {
			continue
		}
		if !knownPart(key) {
			return nil, ruleError("unknown rule part %q", k)
		}
		norm[key] = strings.TrimSpace(v)
	}

	freqValue, ok := norm[PartFreq]
	if !ok || freqValue == "" {
		return nil, ruleError("FREQ is required")
	}
	_, hasUntil := norm[PartUntil]
	_, hasCount := norm[PartCount]
	if hasUntil && hasCount {
		return nil, ruleError("UNTIL and COUNT are mutually exclusive")
	}

	freq, err := ParseFrequency(freqValue)
	if err != nil {
		return nil, err
	}
	rule := NewRule(freq)
	rule.location = loc

	for _, key := range partOrder[1:] {
		value, ok := norm[key]
		if !ok {
			continue
		}
		if err := rule.applyPart(key, value); err != nil {
			return nil, err
		}
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func knownPart(key string) bool {
	for _, k := range partOrder {
		if k == key {
			return true
		}
	}
	return false
}

func (r *Rule) applyPart(key, value string) error {
	switch key {
	case PartInterval:
		n, err := strconv.Atoi(value)
		if err != nil {
			return &Error{Kind: KindInvalidRuleField, Field: key, Message: "not an integer", Err: err}
		}
		return r.SetInterval(n)
	case PartCount:
		n, err := strconv.Atoi(value)
		if err != nil {
			return &Error{Kind: KindInvalidRuleField, Field: key, Message: "not an integer", Err: err}
		}
		return r.SetCount(n)
	case PartUntil:
		v, err := parseDateValue(key, value, r.location)
		if err != nil {
			return err
		}
		r.SetUntil(v.t)
	case PartStart:
		v, err := parseDateValue(key, value, r.location)
		if err != nil {
			return err
		}
		r.SetStartDate(v.t)
		r.SetStartForm(!v.hasTime, false)
	case PartEnd:
		v, err := parseDateValue(key, value, r.location)
		if err != nil {
			return err
		}
		r.SetEndDate(v.t)
	case PartByDay:
		days, err := parseWeekdayList(value)
		if err != nil {
			return err
		}
		return r.SetByDay(days)
	case PartWeekStart:
		w, err := ParseWeekday(value)
		if err != nil {
			return &Error{Kind: KindInvalidRuleField, Field: key, Message: "unknown week start", Err: err}
		}
		return r.SetWeekStart(w)
	case PartRDate:
		values, err := parseDateList(key, value, r.location)
		if err != nil {
			return err
		}
		dates := make([]DateInclusion, len(values))
		for i, v := range values {
			dates[i] = DateInclusion{Date: v.t, HasTime: v.hasTime, IsUTCExplicit: v.utc}
		}
		r.SetRDates(dates)
	case PartExDate:
		values, err := parseDateList(key, value, r.location)
		if err != nil {
			return err
		}
		dates := make([]DateExclusion, len(values))
		for i, v := range values {
			dates[i] = DateExclusion{Date: v.t, HasTime: v.hasTime, IsUTCExplicit: v.utc}
		}
		r.SetExDates(dates)
	default:
		values, err := parseIntList(key, value)
		if err != nil {
			return err
		}
		return r.intSetter(key)(values)
	}
	return nil
}

func (r *Rule) intSetter(key string) func([]int) error {
	switch key {
	case PartBySecond:
		return r.SetBySecond
	case PartByMinute:
		return r.SetByMinute
	case PartByHour:
		return r.SetByHour
	case PartByMonthDay:
		return r.SetByMonthDay
	case PartByYearDay:
		return r.SetByYearDay
	case PartByWeekNo:
		return r.SetByWeekNumber
	case PartByMonth:
		return r.SetByMonth
	default:
		return r.SetBySetPosition
	}
}

func parseIntList(field, value string) ([]int, error) {
	if value == "" {
		return nil, fieldError(field, "empty value")
	}
	fields := strings.Split(value, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, &Error{Kind: KindInvalidRuleField, Field: field, Message: "not an integer list", Err: err}
		}
		out = append(out, n)
	}
	return out, nil
}

func parseWeekdayList(value string) ([]Weekday, error) {
	fields := strings.Split(value, ",")
	out := make([]Weekday, 0, len(fields))
	for _, f := range fields {
		w, err := ParseWeekday(f)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

type dateValue struct {
	t       time.Time
	hasTime bool
	utc     bool
}

// parseDateValue reads 20060102, 20060102T150405, 20060102T150405Z or any of
// them prefixed with "TZID=Zone/Name:".
func parseDateValue(field, value string, loc *time.Location) (dateValue, error) {
	s := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(strings.ToUpper(s), "TZID="); ok {
		name, stamp, found := strings.Cut(s[len(s)-len(rest):], ":")
		if !found {
			return dateValue{}, fieldError(field, "malformed TZID value %q", value)
		}
		zone, err := time.LoadLocation(name)
		if err != nil {
			return dateValue{}, &Error{Kind: KindInvalidRuleField, Field: field, Message: "unknown time zone " + name, Err: err}
		}
		loc, s = zone, stamp
	}

	switch {
	case len(s) == len(layoutDate):
		t, err := time.ParseInLocation(layoutDate, s, loc)
		if err != nil {
			return dateValue{}, &Error{Kind: KindInvalidRuleField, Field: field, Message: "bad date", Err: err}
		}
		return dateValue{t: t}, nil
	case strings.HasSuffix(strings.ToUpper(s), "Z"):
		t, err := time.ParseInLocation(layoutDateTime, s[:len(s)-1], time.UTC)
		if err != nil {
			return dateValue{}, &Error{Kind: KindInvalidRuleField, Field: field, Message: "bad date-time", Err: err}
		}
		return dateValue{t: t, hasTime: true, utc: true}, nil
	default:
		t, err := time.ParseInLocation(layoutDateTime, s, loc)
		if err != nil {
			return dateValue{}, &Error{Kind: KindInvalidRuleField, Field: field, Message: "bad date-time", Err: err}
		}
		return dateValue{t: t, hasTime: true}, nil
	}
}

func parseDateList(field, value string, loc *time.Location) ([]dateValue, error) {
	// A TZID on the first entry applies to every later entry without its own.
	prefix := ""
	var out []dateValue
	for _, f := range strings.Split(value, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(f), "TZID=") {
			if i := strings.Index(f, ":"); i >= 0 && len(out) == 0 {
				prefix = f[:i+1]
			}
		} else {
			f = prefix + f
		}
		v, err := parseDateValue(field, f, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
