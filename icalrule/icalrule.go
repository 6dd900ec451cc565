// Package icalrule moves recurrence rules in and out of iCalendar components.
package icalrule

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/cyp0633/librecur/recurrence"
)

const (
	layoutDate          = "20060102"
	layoutLocalDateTime = "20060102T150405"
)

// Expander is satisfied by *recurrence.Engine.
type Expander interface {
	Transform(ctx context.Context, rule *recurrence.Rule, opts recurrence.ExpansionOptions) (recurrence.Collection, error)
}

// dated is one parsed DATE or DATE-TIME value.
type dated struct {
	t       time.Time
	hasTime bool
	utc     bool
}

// RuleFromComponent builds a rule from the DTSTART, DTEND or DURATION, RRULE,
// RDATE and EXDATE properties of comp. Floating values are read in loc (UTC
// when nil). A component without RRULE yields a single-occurrence rule so
// DTSTART and any RDATEs still expand.
func RuleFromComponent(comp *ical.Component, loc *time.Location) (*recurrence.Rule, error) {
	if loc == nil {
		loc = time.UTC
	}

	var start dated
	hasStart := false
	if p := comp.Props.Get(ical.PropDateTimeStart); p != nil {
		values, err := propDates(*p, loc)
		if err != nil || len(values) != 1 {
			return nil, propError(ical.PropDateTimeStart, p.Value, err)
		}
		start, hasStart = values[0], true
		loc = start.t.Location()
	}

	var rule *recurrence.Rule
	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil && p.Value != "" {
		r, err := recurrence.ParseRule(p.Value, loc)
		if err != nil {
			return nil, fmt.Errorf("icalrule: RRULE: %w", err)
		}
		rule = r
	} else {
		rule = recurrence.NewRule(recurrence.Daily)
		if err := rule.SetLocation(loc); err != nil {
			return nil, err
		}
		if err := rule.SetCount(1); err != nil {
			return nil, err
		}
	}

	if hasStart {
		rule.SetStartDate(start.t)
		p := comp.Props.Get(ical.PropDateTimeStart)
		rule.SetStartForm(!start.hasTime, !start.utc && p.Params.Get(ical.ParamTimezoneID) == "")
		end, ok, err := componentEnd(comp, start, loc)
		if err != nil {
			return nil, err
		}
		if ok {
			rule.SetEndDate(end)
		}
	}

	var rdates []recurrence.DateInclusion
	for _, p := range comp.Props.Values(ical.PropRecurrenceDates) {
		values, err := propDates(p, loc)
		if err != nil {
			return nil, propError(ical.PropRecurrenceDates, p.Value, err)
		}
		for _, v := range values {
			rdates = append(rdates, recurrence.DateInclusion{Date: v.t, HasTime: v.hasTime, IsUTCExplicit: v.utc})
		}
	}
	rule.SetRDates(rdates)

	var exdates []recurrence.DateExclusion
	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		values, err := propDates(p, loc)
		if err != nil {
			return nil, propError(ical.PropExceptionDates, p.Value, err)
		}
		for _, v := range values {
			exdates = append(exdates, recurrence.DateExclusion{Date: v.t, HasTime: v.hasTime, IsUTCExplicit: v.utc})
		}
	}
	rule.SetExDates(exdates)

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// componentEnd resolves DTEND, then DURATION. All-day components without
// either last one day.
func componentEnd(comp *ical.Component, start dated, loc *time.Location) (time.Time, bool, error) {
	if p := comp.Props.Get(ical.PropDateTimeEnd); p != nil {
		values, err := propDates(*p, loc)
		if err != nil || len(values) != 1 {
			return time.Time{}, false, propError(ical.PropDateTimeEnd, p.Value, err)
		}
		return values[0].t, true, nil
	}
	if p := comp.Props.Get(ical.PropDuration); p != nil {
		d, err := p.Duration()
		if err != nil {
			return time.Time{}, false, propError(ical.PropDuration, p.Value, err)
		}
		return start.t.Add(d), true, nil
	}
	if !start.hasTime {
		return start.t.AddDate(0, 0, 1), true, nil
	}
	return time.Time{}, false, nil
}

// propDates parses a possibly comma-separated DATE or DATE-TIME property.
func propDates(p ical.Prop, loc *time.Location) ([]dated, error) {
	dateOnly := strings.EqualFold(p.Params.Get(ical.ParamValue), "DATE")
	var out []dated
	for _, v := range strings.Split(p.Value, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if dateOnly || len(v) == len(layoutDate) {
			zone := loc
			if tzid := p.Params.Get(ical.ParamTimezoneID); tzid != "" {
				z, err := time.LoadLocation(tzid)
				if err != nil {
					return nil, err
				}
				zone = z
			}
			t, err := time.ParseInLocation(layoutDate, v, zone)
			if err != nil {
				return nil, err
			}
			out = append(out, dated{t: t})
			continue
		}
		single := ical.Prop{Name: p.Name, Params: p.Params, Value: v}
		t, err := single.DateTime(loc)
		if err != nil {
			return nil, err
		}
		out = append(out, dated{t: t.Truncate(time.Second), hasTime: true, utc: strings.HasSuffix(v, "Z")})
	}
	return out, nil
}

func propError(name, value string, err error) error {
	if err == nil {
		return fmt.Errorf("icalrule: %s: unexpected value %q", name, value)
	}
	return fmt.Errorf("icalrule: %s %q: %w", name, value, err)
}

// dateProp renders t as a DATE, a UTC DATE-TIME or a DATE-TIME with TZID.
func dateProp(name string, t time.Time, hasTime bool) *ical.Prop {
	p := ical.NewProp(name)
	switch {
	case !hasTime:
		p.Params.Set(ical.ParamValue, string(ical.ValueDate))
		p.Value = t.Format(layoutDate)
	case t.Location() == time.UTC:
		p.Value = t.Format(layoutLocalDateTime) + "Z"
	default:
		p.Params.Set(ical.ParamTimezoneID, t.Location().String())
		p.Value = t.Format(layoutLocalDateTime)
	}
	return p
}

// startProp renders a DTSTART, DTEND or RECURRENCE-ID value in the form the
// rule's DTSTART was given in.
func startProp(name string, t time.Time, rule *recurrence.Rule) *ical.Prop {
	if rule.StartIsFloating() {
		p := ical.NewProp(name)
		p.Value = t.Format(layoutLocalDateTime)
		return p
	}
	return dateProp(name, t, !rule.StartIsAllDay())
}

// RecurrenceText renders only the RRULE value of rule. UNTIL is written in
// UTC as iCalendar requires for zoned DTSTART values.
func RecurrenceText(rule *recurrence.Rule) string {
	c := rule.Clone()
	c.ClearStartDate()
	c.ClearEndDate()
	c.SetRDates(nil)
	c.SetExDates(nil)
	if until, ok := c.Until().Get(); ok {
		c.SetUntil(until.UTC())
	}
	return c.String()
}

var ruleProps = []string{
	ical.PropDateTimeStart,
	ical.PropDateTimeEnd,
	ical.PropDuration,
	ical.PropRecurrenceRule,
	ical.PropRecurrenceDates,
	ical.PropExceptionDates,
}

// ApplyRule replaces the scheduling properties of comp with those of rule.
func ApplyRule(comp *ical.Component, rule *recurrence.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	for _, name := range ruleProps {
		delete(comp.Props, name)
	}

	if start, ok := rule.StartDate().Get(); ok {
		comp.Props.Set(startProp(ical.PropDateTimeStart, start, rule))
	}
	if end, ok := rule.EndDate().Get(); ok {
		comp.Props.Set(startProp(ical.PropDateTimeEnd, end, rule))
	}

	rrule := ical.NewProp(ical.PropRecurrenceRule)
	rrule.Value = RecurrenceText(rule)
	comp.Props.Set(rrule)

	for _, d := range rule.RDates() {
		t := d.Date
		if d.IsUTCExplicit {
			t = t.UTC()
		}
		addProp(comp, dateProp(ical.PropRecurrenceDates, t, d.HasTime))
	}
	for _, d := range rule.ExDates() {
		t := d.Date
		if d.IsUTCExplicit {
			t = t.UTC()
		}
		addProp(comp, dateProp(ical.PropExceptionDates, t, d.HasTime))
	}
	return nil
}

func addProp(comp *ical.Component, p *ical.Prop) {
	comp.Props[p.Name] = append(comp.Props[p.Name], *p)
}

// NewEvent creates a VEVENT carrying rule with a fresh UID.
func NewEvent(rule *recurrence.Rule, summary string) (*ical.Event, error) {
	if rule.StartDate().IsAbsent() {
		return nil, &recurrence.Error{Kind: recurrence.KindMissingData, Field: "DTSTART", Message: "event needs a start date"}
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uuid.NewString())
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	if summary != "" {
		event.Props.SetText(ical.PropSummary, summary)
	}
	if err := ApplyRule(event.Component, rule); err != nil {
		return nil, err
	}
	return event, nil
}

// ExpandComponent turns a recurring component into one component per
// occurrence. Each instance keeps the master's other properties and gets a
// RECURRENCE-ID equal to its start.
func ExpandComponent(ctx context.Context, exp Expander, comp *ical.Component, loc *time.Location, opts recurrence.ExpansionOptions) ([]*ical.Component, error) {
	rule, err := RuleFromComponent(comp, loc)
	if err != nil {
		return nil, err
	}
	occurrences, err := exp.Transform(ctx, rule, opts)
	if err != nil {
		return nil, err
	}

	_, hasEnd, err := componentEnd(comp, dated{hasTime: !rule.StartIsAllDay()}, time.UTC)
	if err != nil {
		return nil, err
	}

	instances := make([]*ical.Component, 0, len(occurrences))
	for _, occ := range occurrences {
		inst := ical.NewComponent(comp.Name)
		for name, props := range comp.Props {
			inst.Props[name] = slices.Clone(props)
		}
		for _, name := range ruleProps {
			delete(inst.Props, name)
		}
		inst.Children = slices.Clone(comp.Children)

		inst.Props.Set(startProp(ical.PropDateTimeStart, occ.Start, rule))
		if hasEnd {
			inst.Props.Set(startProp(ical.PropDateTimeEnd, occ.End, rule))
		}
		inst.Props.Set(startProp(ical.PropRecurrenceID, occ.Start, rule))
		instances = append(instances, inst)
	}
	return instances, nil
}
