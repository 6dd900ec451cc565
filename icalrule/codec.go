package icalrule

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// ProductID identifies calendars written by EncodeEvents.
const ProductID = "-//librecur//Recurrence Expansion//EN"

// ErrNoEvents is returned when a calendar has no VEVENT to decode.
var ErrNoEvents = errors.New("icalrule: no events found in calendar")

// EncodeEvents wraps events in a VCALENDAR and serializes it.
func EncodeEvents(events ...*ical.Event) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, event := range events {
		if event.Props.Get(ical.PropDateTimeStamp) == nil {
			event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
		}
		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("icalrule: failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// EncodeComponents serializes expanded instances as a calendar.
func EncodeComponents(comps []*ical.Component) (string, error) {
	events := make([]*ical.Event, len(comps))
	for i, comp := range comps {
		events[i] = &ical.Event{Component: comp}
	}
	return EncodeEvents(events...)
}

// DecodeEvent returns the first VEVENT of an iCalendar stream.
func DecodeEvent(ics string) (*ical.Event, error) {
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	if err != nil {
		return nil, fmt.Errorf("icalrule: failed to decode calendar: %w", err)
	}

	events := cal.Events()
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	return &events[0], nil
}
