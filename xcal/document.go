package xcal

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/cyp0633/librecur/recurrence"
)

// EncodeProperties renders rule as an xCal <properties> element holding
// DTSTART, DTEND, RRULE, RDATE and EXDATE.
func EncodeProperties(rule *recurrence.Rule) *etree.Element {
	props := etree.NewElement("properties")
	loc := rule.Location()

	if start, ok := rule.StartDate().Get(); ok {
		addDate(props, "dtstart", start, true, start.Location() == time.UTC, loc)
	}
	if end, ok := rule.EndDate().Get(); ok {
		addDate(props, "dtend", end, true, end.Location() == time.UTC, loc)
	}
	props.CreateElement("rrule").AddChild(EncodeRecur(rule))
	for _, d := range rule.RDates() {
		addDate(props, "rdate", d.Date, d.HasTime, d.IsUTCExplicit, loc)
	}
	for _, d := range rule.ExDates() {
		addDate(props, "exdate", d.Date, d.HasTime, d.IsUTCExplicit, loc)
	}
	return props
}

func addDate(parent *etree.Element, name string, t time.Time, hasTime, utc bool, loc *time.Location) {
	el := parent.CreateElement(name)
	switch {
	case !hasTime:
		el.CreateElement("date").SetText(t.Format(layoutDate))
	case utc:
		el.CreateElement("date-time").SetText(t.UTC().Format(layoutDateTime) + "Z")
	default:
		if t.Location().String() != loc.String() {
			params := el.CreateElement("parameters")
			params.CreateElement("tzid").CreateElement("text").SetText(t.Location().String())
		}
		el.CreateElement("date-time").SetText(t.Format(layoutDateTime))
	}
}

// MarshalRule wraps rule in a complete xCal document with one VEVENT.
func MarshalRule(rule *recurrence.Rule) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("icalendar")
	root.CreateAttr("xmlns", Namespace)
	vevent := root.CreateElement("vcalendar").
		CreateElement("components").
		CreateElement("vevent")
	vevent.AddChild(EncodeProperties(rule))

	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("xcal: failed to write document: %w", err)
	}
	return out, nil
}

// UnmarshalRule reads the first <rrule> of an xCal document together with
// the date properties next to it. Floating values are read in loc (UTC when
// nil).
func UnmarshalRule(data string, loc *time.Location) (*recurrence.Rule, error) {
	if loc == nil {
		loc = time.UTC
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(data); err != nil {
		return nil, fmt.Errorf("xcal: failed to parse document: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("xcal: empty document")
	}

	rrule := doc.FindElement("//rrule")
	if rrule == nil {
		return nil, fmt.Errorf("xcal: no <rrule> property found")
	}
	parts, err := DecodeRecur(rrule.SelectElement("recur"))
	if err != nil {
		return nil, err
	}
	rule, err := recurrence.NewRuleFromParts(parts, loc)
	if err != nil {
		return nil, err
	}

	props := rrule.Parent()
	if el := props.SelectElement("dtstart"); el != nil {
		v, err := decodeDate(el, loc)
		if err != nil {
			return nil, err
		}
		rule.SetStartDate(v.t)
	}
	if el := props.SelectElement("dtend"); el != nil {
		v, err := decodeDate(el, loc)
		if err != nil {
			return nil, err
		}
		rule.SetEndDate(v.t)
	}

	var rdates []recurrence.DateInclusion
	for _, el := range props.SelectElements("rdate") {
		v, err := decodeDate(el, loc)
		if err != nil {
			return nil, err
		}
		rdates = append(rdates, recurrence.DateInclusion{Date: v.t, HasTime: v.hasTime, IsUTCExplicit: v.utc})
	}
	rule.SetRDates(rdates)

	var exdates []recurrence.DateExclusion
	for _, el := range props.SelectElements("exdate") {
		v, err := decodeDate(el, loc)
		if err != nil {
			return nil, err
		}
		exdates = append(exdates, recurrence.DateExclusion{Date: v.t, HasTime: v.hasTime, IsUTCExplicit: v.utc})
	}
	rule.SetExDates(exdates)

	return rule, nil
}

type dateValue struct {
	t       time.Time
	hasTime bool
	utc     bool
}

func decodeDate(el *etree.Element, loc *time.Location) (dateValue, error) {
	zone := loc
	if tzid := el.FindElement("parameters/tzid/text"); tzid != nil {
		z, err := time.LoadLocation(strings.TrimSpace(tzid.Text()))
		if err != nil {
			return dateValue{}, fmt.Errorf("xcal: <%s>: %w", el.Tag, err)
		}
		zone = z
	}

	if dt := el.SelectElement("date-time"); dt != nil {
		text := strings.TrimSpace(dt.Text())
		if s, ok := strings.CutSuffix(text, "Z"); ok {
			t, err := time.ParseInLocation(layoutDateTime, s, time.UTC)
			if err != nil {
				return dateValue{}, fmt.Errorf("xcal: <%s>: %w", el.Tag, err)
			}
			return dateValue{t: t, hasTime: true, utc: true}, nil
		}
		t, err := time.ParseInLocation(layoutDateTime, text, zone)
		if err != nil {
			return dateValue{}, fmt.Errorf("xcal: <%s>: %w", el.Tag, err)
		}
		return dateValue{t: t, hasTime: true}, nil
	}
	if d := el.SelectElement("date"); d != nil {
		t, err := time.ParseInLocation(layoutDate, strings.TrimSpace(d.Text()), zone)
		if err != nil {
			return dateValue{}, fmt.Errorf("xcal: <%s>: %w", el.Tag, err)
		}
		return dateValue{t: t}, nil
	}
	return dateValue{}, fmt.Errorf("xcal: <%s> has no date or date-time value", el.Tag)
}
