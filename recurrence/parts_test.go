package recurrence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuleFromParts(t *testing.T) {
	rule, err := NewRuleFromParts(map[string]string{
		"FREQ":       "monthly",
		"interval":   "2",
		"COUNT":      "6",
		"BYDAY":      "-1FR,1MO",
		"BYMONTH":    "1,6",
		"WKST":       "SU",
		"DTSTART":    "20240105T083000",
		"X-CUSTOM":   "ignored",
		"BYMONTHDAY": "1, 15",
	}, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, Monthly, rule.Freq())
	assert.Equal(t, 2, rule.Interval())
	n, _ := rule.Count().Get()
	assert.Equal(t, 6, n)
	assert.Equal(t, []Weekday{FR.Nth(-1), MO.Nth(1)}, rule.ByDay())
	assert.Equal(t, []int{1, 6}, rule.ByMonth())
	assert.Equal(t, []int{1, 15}, rule.ByMonthDay())
	assert.Equal(t, SU, rule.WeekStart())
	start, _ := rule.StartDate().Get()
	assert.Equal(t, at(2024, 1, 5, 8, 30, 0), start)
}

func TestNewRuleFromParts_Errors(t *testing.T) {
	tests := []struct {
		name  string
		parts map[string]string
		kind  error
	}{
		{"Missing FREQ", map[string]string{"COUNT": "1"}, ErrInvalidRule},
		{"Unknown FREQ", map[string]string{"FREQ": "SOMETIMES"}, ErrInvalidRule},
		{"UNTIL and COUNT", map[string]string{"FREQ": "DAILY", "COUNT": "1", "UNTIL": "20240101"}, ErrInvalidRule},
		{"Unknown key", map[string]string{"FREQ": "DAILY", "BYEASTER": "0"}, ErrInvalidRule},
		{"Bad interval", map[string]string{"FREQ": "DAILY", "INTERVAL": "two"}, ErrInvalidRuleField},
		{"Out of range month", map[string]string{"FREQ": "YEARLY", "BYMONTH": "0"}, ErrInvalidRuleField},
		{"Empty list", map[string]string{"FREQ": "YEARLY", "BYHOUR": ""}, ErrInvalidRuleField},
		{"Bad weekday", map[string]string{"FREQ": "WEEKLY", "BYDAY": "MO,XX"}, ErrInvalidWeekday},
		{"Ordinal in weekly rule", map[string]string{"FREQ": "WEEKLY", "BYDAY": "2MO"}, ErrInvalidRule},
		{"Bad week start", map[string]string{"FREQ": "WEEKLY", "WKST": "1MO"}, ErrInvalidRuleField},
		{"Bad date", map[string]string{"FREQ": "DAILY", "DTSTART": "2024-01-01"}, ErrInvalidRuleField},
		{"Unknown zone", map[string]string{"FREQ": "DAILY", "DTSTART": "TZID=Mars/Base:20240101T000000"}, ErrInvalidRuleField},
		{"Lone BYSETPOS", map[string]string{"FREQ": "MONTHLY", "BYSETPOS": "1"}, ErrInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewRuleFromParts(tt.parts, time.UTC)
			assert.Nil(t, rule)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestParseRule_DateForms(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	rule, err := ParseRule("RRULE:FREQ=DAILY;UNTIL=20240110;DTSTART=TZID=Europe/Paris:20240101T090000;"+
		"RDATE=20240201T100000Z,20240202;EXDATE=TZID=Europe/Paris:20240103T090000,20240104T090000", time.UTC)
	require.NoError(t, err)

	start, _ := rule.StartDate().Get()
	assert.True(t, start.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, paris)))
	assert.Equal(t, "Europe/Paris", start.Location().String())

	until, _ := rule.Until().Get()
	assert.Equal(t, day(2024, 1, 10), until)

	rdates := rule.RDates()
	require.Len(t, rdates, 2)
	assert.True(t, rdates[0].HasTime)
	assert.True(t, rdates[0].IsUTCExplicit)
	assert.Equal(t, at(2024, 2, 1, 10, 0, 0), rdates[0].Date)
	assert.False(t, rdates[1].HasTime)
	assert.False(t, rdates[1].IsUTCExplicit)

	exdates := rule.ExDates()
	require.Len(t, exdates, 2)
	for _, x := range exdates {
		assert.Equal(t, "Europe/Paris", x.Date.Location().String())
		assert.True(t, x.HasTime)
	}
}

func TestParseRule_Malformed(t *testing.T) {
	for _, text := range []string{"", "RRULE:", "FREQ", "FREQ=DAILY;FREQ=WEEKLY", "FREQ=DAILY;;COUNT"} {
		t.Run(text, func(t *testing.T) {
			_, err := ParseRule(text, nil)
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestRule_String(t *testing.T) {
	rule := NewRule(Monthly)
	require.NoError(t, rule.SetInterval(2))
	require.NoError(t, rule.SetCount(5))
	require.NoError(t, rule.SetBySetPosition([]int{-1}))
	require.NoError(t, rule.SetByDay([]Weekday{MO, TU}))
	require.NoError(t, rule.SetByHour([]int{9}))
	require.NoError(t, rule.SetWeekStart(SU))
	rule.SetStartDate(at(2024, 1, 1, 9, 0, 0))
	rule.SetExDates([]DateExclusion{{Date: day(2024, 2, 26)}})

	assert.Equal(t,
		"FREQ=MONTHLY;INTERVAL=2;COUNT=5;BYHOUR=9;BYDAY=MO,TU;BYSETPOS=-1;WKST=SU;DTSTART=20240101T090000Z;EXDATE=20240226",
		rule.String())
}

func TestRule_StringFloatingAndZoned(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	rule := NewRule(Daily)
	require.NoError(t, rule.SetLocation(berlin))
	rule.SetStartDate(time.Date(2024, 1, 1, 9, 0, 0, 0, berlin))
	rule.SetUntil(time.Date(2024, 1, 5, 9, 0, 0, 0, tokyo))

	assert.Equal(t, "FREQ=DAILY;UNTIL=TZID=Asia/Tokyo:20240105T090000;DTSTART=20240101T090000", rule.String())
}

func TestRule_RoundTrip(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	engine := NewEngine()

	texts := []string{
		"FREQ=YEARLY;COUNT=5;DTSTART=20160229T000000",
		"FREQ=MONTHLY;BYSETPOS=-1;BYDAY=MO,TU,WE,TH,FR;COUNT=5;DTSTART=20130124T000000",
		"FREQ=WEEKLY;INTERVAL=2;WKST=SU;BYDAY=TU,SU;UNTIL=19971224T000000Z;DTSTART=19970902T090000",
		"FREQ=DAILY;COUNT=3;DTSTART=20140601;EXDATE=20140602;RDATE=20140701T120000Z",
		"FREQ=HOURLY;INTERVAL=3;BYMINUTE=15,45;COUNT=10;DTSTART=TZID=Asia/Tokyo:20240101T000000",
		"FREQ=YEARLY;BYWEEKNO=20,-1;BYDAY=MO;COUNT=4;DTSTART=20000101T000000;DTEND=20000101T013000",
		"FREQ=YEARLY;BYYEARDAY=-300,140;COUNT=4;DTSTART=20000101T000000",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			rule, err := ParseRule(text, berlin)
			require.NoError(t, err)
			want, err := engine.Transform(context.Background(), rule, DefaultExpansionOptions)
			require.NoError(t, err)

			rendered := rule.String()
			again, err := ParseRule(rendered, berlin)
			require.NoError(t, err)
			assert.Equal(t, rendered, again.String())

			got, err := engine.Transform(context.Background(), again, DefaultExpansionOptions)
			require.NoError(t, err)
			require.Equal(t, len(want), len(got))
			for i := range want {
				assert.True(t, want[i].Start.Equal(got[i].Start), "occurrence %d", i)
				assert.True(t, want[i].End.Equal(got[i].End), "occurrence %d", i)
			}
		})
	}
}

func TestRule_RoundTripZonedDateLists(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	rule := NewRule(Daily)
	require.NoError(t, rule.SetCount(3))
	rule.SetStartDate(at(2014, 2, 1, 8, 0, 0))
	rule.SetRDates([]DateInclusion{
		{Date: time.Date(2014, 2, 1, 9, 0, 0, 0, berlin), HasTime: true},
		{Date: time.Date(2014, 2, 2, 9, 0, 0, 0, berlin), HasTime: true},
		{Date: at(2014, 2, 3, 9, 0, 0), HasTime: true},
	})
	rule.SetExDates([]DateExclusion{{Date: time.Date(2014, 2, 2, 0, 0, 0, 0, berlin)}})

	rendered := rule.String()
	assert.Equal(t,
		"FREQ=DAILY;COUNT=3;DTSTART=20140201T080000Z;"+
			"RDATE=TZID=Europe/Berlin:20140201T090000,TZID=Europe/Berlin:20140202T090000,TZID=UTC:20140203T090000;"+
			"EXDATE=TZID=Europe/Berlin:20140202",
		rendered)

	again, err := ParseRule(rendered, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, rendered, again.String())

	rdates := again.RDates()
	require.Len(t, rdates, 3)
	for i, want := range rule.RDates() {
		assert.True(t, want.Date.Equal(rdates[i].Date), "rdate %d", i)
		assert.Equal(t, want.Date.Location().String(), rdates[i].Date.Location().String(), "rdate %d", i)
		assert.True(t, rdates[i].HasTime)
	}

	exdates := again.ExDates()
	require.Len(t, exdates, 1)
	assert.False(t, exdates[0].HasTime)
	assert.Equal(t, "Europe/Berlin", exdates[0].Date.Location().String())
	assert.True(t, exdates[0].Date.Equal(time.Date(2014, 2, 2, 0, 0, 0, 0, berlin)))
}

func TestParseRule_DateListPerEntryZones(t *testing.T) {
	rule, err := ParseRule("FREQ=DAILY;COUNT=1;DTSTART=20140101T000000Z;"+
		"RDATE=TZID=Asia/Tokyo:20140201T090000,20140202T090000,TZID=Europe/Berlin:20140203T090000,20140204T090000Z", time.UTC)
	require.NoError(t, err)

	var zones []string
	for _, d := range rule.RDates() {
		zones = append(zones, d.Date.Location().String())
	}
	assert.Equal(t, []string{"Asia/Tokyo", "Asia/Tokyo", "Europe/Berlin", "UTC"}, zones)
	assert.True(t, rule.RDates()[3].IsUTCExplicit)
}
