// Package xcal renders recurrence rules as xCal (RFC 6321) XML and reads
// them back.
package xcal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/cyp0633/librecur/recurrence"
)

// Namespace is the xCal XML namespace.
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

const (
	layoutDate     = "2006-01-02"
	layoutDateTime = "2006-01-02T15:04:05"
)

// EncodeRecur renders the recurrence part of rule as a <recur> element in
// RFC 6321 element order. UNTIL is written in UTC.
func EncodeRecur(rule *recurrence.Rule) *etree.Element {
	recur := etree.NewElement("recur")
	add := func(tag, value string) {
		recur.CreateElement(tag).SetText(value)
	}
	addInts := func(tag string, values []int) {
		for _, v := range values {
			add(tag, strconv.Itoa(v))
		}
	}

	add("freq", rule.Freq().String())
	if until, ok := rule.Until().Get(); ok {
		add("until", until.UTC().Format(layoutDateTime)+"Z")
	}
	if n, ok := rule.Count().Get(); ok {
		add("count", strconv.Itoa(n))
	}
	if rule.Interval() != 1 {
		add("interval", strconv.Itoa(rule.Interval()))
	}
	addInts("bysecond", rule.BySecond())
	addInts("byminute", rule.ByMinute())
	addInts("byhour", rule.ByHour())
	for _, d := range rule.ByDay() {
		add("byday", d.String())
	}
	addInts("bymonthday", rule.ByMonthDay())
	addInts("byyearday", rule.ByYearDay())
	addInts("byweekno", rule.ByWeekNumber())
	addInts("bymonth", rule.ByMonth())
	addInts("bysetpos", rule.BySetPosition())
	if rule.WeekStart() != recurrence.MO {
		add("wkst", rule.WeekStart().String())
	}
	return recur
}

// DecodeRecur converts a <recur> element into RRULE parts suitable for
// recurrence.NewRuleFromParts. Repeated elements are joined with commas.
func DecodeRecur(recur *etree.Element) (map[string]string, error) {
	if recur == nil || recur.Tag != "recur" {
		return nil, fmt.Errorf("xcal: expected <recur> element")
	}

	values := make(map[string][]string)
	for _, child := range recur.ChildElements() {
		text := strings.TrimSpace(child.Text())
		if text == "" {
			return nil, fmt.Errorf("xcal: empty <%s> element", child.Tag)
		}
		if child.Tag == "until" {
			until, err := basicDate(text)
			if err != nil {
				return nil, err
			}
			text = until
		}
		values[child.Tag] = append(values[child.Tag], text)
	}

	parts := make(map[string]string, len(values))
	for tag, v := range values {
		parts[strings.ToUpper(tag)] = strings.Join(v, ",")
	}
	return parts, nil
}

// basicDate turns an xCal date or date-time into its iCalendar text form.
func basicDate(s string) (string, error) {
	utc := strings.HasSuffix(s, "Z")
	trimmed := strings.TrimSuffix(s, "Z")
	if t, err := time.Parse(layoutDateTime, trimmed); err == nil {
		out := t.Format("20060102T150405")
		if utc {
			out += "Z"
		}
		return out, nil
	}
	if t, err := time.Parse(layoutDate, s); err == nil {
		return t.Format("20060102"), nil
	}
	return "", fmt.Errorf("xcal: invalid date value %q", s)
}
