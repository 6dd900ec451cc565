package recurrence

import (
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Defaults(t *testing.T) {
	rule := NewRule(Weekly)

	assert.Equal(t, Weekly, rule.Freq())
	assert.Equal(t, 1, rule.Interval())
	assert.Equal(t, time.UTC, rule.Location())
	assert.Equal(t, MO, rule.WeekStart())
	assert.True(t, rule.StartDate().IsAbsent())
	assert.True(t, rule.RepeatsIndefinitely())
	assert.NoError(t, rule.Validate())
}

func TestRule_UntilAndCountReplaceEachOther(t *testing.T) {
	rule := NewRule(Daily)

	require.NoError(t, rule.SetCount(5))
	assert.Equal(t, mo.Some(5), rule.Count())

	rule.SetUntil(day(2020, 1, 1))
	assert.True(t, rule.Count().IsAbsent())
	assert.Equal(t, mo.Some(day(2020, 1, 1)), rule.Until())

	require.NoError(t, rule.SetCount(2))
	assert.True(t, rule.Until().IsAbsent())
	assert.False(t, rule.RepeatsIndefinitely())
}

func TestRule_RangeChecks(t *testing.T) {
	tests := []struct {
		name  string
		field string
		set   func(*Rule) error
	}{
		{"Zero interval", "INTERVAL", func(r *Rule) error { return r.SetInterval(0) }},
		{"Negative count", "COUNT", func(r *Rule) error { return r.SetCount(-1) }},
		{"Second 60", "BYSECOND", func(r *Rule) error { return r.SetBySecond([]int{0, 60}) }},
		{"Minute -1", "BYMINUTE", func(r *Rule) error { return r.SetByMinute([]int{-1}) }},
		{"Hour 24", "BYHOUR", func(r *Rule) error { return r.SetByHour([]int{24}) }},
		{"Month day 0", "BYMONTHDAY", func(r *Rule) error { return r.SetByMonthDay([]int{0}) }},
		{"Month day -32", "BYMONTHDAY", func(r *Rule) error { return r.SetByMonthDay([]int{-32}) }},
		{"Year day 367", "BYYEARDAY", func(r *Rule) error { return r.SetByYearDay([]int{367}) }},
		{"Week 54", "BYWEEKNO", func(r *Rule) error { return r.SetByWeekNumber([]int{-54}) }},
		{"Month 13", "BYMONTH", func(r *Rule) error { return r.SetByMonth([]int{13}) }},
		{"Negative month", "BYMONTH", func(r *Rule) error { return r.SetByMonth([]int{-1}) }},
		{"Set position 0", "BYSETPOS", func(r *Rule) error { return r.SetBySetPosition([]int{0}) }},
		{"Positional week start", "WKST", func(r *Rule) error { return r.SetWeekStart(MO.Nth(1)) }},
		{"Nil location", "TZID", func(r *Rule) error { return r.SetLocation(nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := NewRule(Monthly)
			before := rule.Clone()

			err := tt.set(rule)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRuleField)

			var rerr *Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.field, rerr.Field)
			assert.Equal(t, before, rule, "failed setter must not change the rule")
		})
	}
}

func TestRule_SignedRangesAccepted(t *testing.T) {
	rule := NewRule(Yearly)
	assert.NoError(t, rule.SetByMonthDay([]int{1, 31, -1, -31}))
	assert.NoError(t, rule.SetByYearDay([]int{1, 366, -1, -366}))
	assert.NoError(t, rule.SetByWeekNumber([]int{1, 53, -1, -53}))
	assert.NoError(t, rule.SetBySetPosition([]int{1, -1, 366}))
	assert.NoError(t, rule.SetBySecond([]int{0, 59}))
}

func TestRule_SetByDay(t *testing.T) {
	t.Run("Empty list", func(t *testing.T) {
		err := NewRule(Monthly).SetByDay(nil)
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("Mixed ordinal and plain", func(t *testing.T) {
		err := NewRule(Monthly).SetByDay([]Weekday{MO, FR.Nth(-1)})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("Ordinal with weekly frequency", func(t *testing.T) {
		err := NewRule(Weekly).SetByDay([]Weekday{FR.Nth(2)})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("Ordinal with monthly frequency", func(t *testing.T) {
		rule := NewRule(Monthly)
		require.NoError(t, rule.SetByDay([]Weekday{FR.Nth(2), MO.Nth(-1)}))
		assert.Equal(t, []Weekday{FR.Nth(2), MO.Nth(-1)}, rule.ByDay())
	})

	t.Run("Frequency change guarded by ordinals", func(t *testing.T) {
		rule := NewRule(Yearly)
		require.NoError(t, rule.SetByDay([]Weekday{TU.Nth(1)}))
		assert.ErrorIs(t, rule.SetFreq(Daily), ErrInvalidRule)
		assert.Equal(t, Yearly, rule.Freq())
		assert.NoError(t, rule.SetFreq(Monthly))
	})

	t.Run("Clear", func(t *testing.T) {
		rule := NewRule(Weekly)
		require.NoError(t, rule.SetByDay([]Weekday{MO}))
		rule.ClearByDay()
		assert.Empty(t, rule.ByDay())
	})
}

func TestRule_Validate(t *testing.T) {
	rule := NewRule(Monthly)
	require.NoError(t, rule.SetBySetPosition([]int{-1}))
	assert.ErrorIs(t, rule.Validate(), ErrInvalidRule)

	require.NoError(t, rule.SetByDay([]Weekday{MO, TU, WE, TH, FR}))
	assert.NoError(t, rule.Validate())
}

func TestRule_AccessorsReturnCopies(t *testing.T) {
	rule := NewRule(Yearly)
	months := []int{1, 2}
	require.NoError(t, rule.SetByMonth(months))
	months[0] = 12

	got := rule.ByMonth()
	assert.Equal(t, []int{1, 2}, got)
	got[1] = 7
	assert.Equal(t, []int{1, 2}, rule.ByMonth())
}

func TestRule_CloneIsIndependent(t *testing.T) {
	rule := NewRule(Yearly)
	require.NoError(t, rule.SetByMonth([]int{3}))
	rule.SetExDates([]DateExclusion{NewDateExclusion(day(2020, 3, 1))})

	clone := rule.Clone()
	require.NoError(t, clone.SetByMonth([]int{4}))
	clone.SetExDates(nil)

	assert.Equal(t, []int{3}, rule.ByMonth())
	assert.Len(t, rule.ExDates(), 1)
}

func TestRule_InLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	rule := NewRule(Daily)
	rule.SetStartDate(at(2020, 1, 1, 20, 0, 0))

	converted := rule.InLocation(tokyo)
	start, ok := converted.StartDate().Get()
	require.True(t, ok)
	assert.Equal(t, tokyo, converted.Location())
	assert.Equal(t, 2, start.Day())
	assert.True(t, start.Equal(at(2020, 1, 1, 20, 0, 0)))

	original, _ := rule.StartDate().Get()
	assert.Equal(t, time.UTC, original.Location())
}

func TestDateExclusion_Excludes(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	dateOnly := DateExclusion{Date: time.Date(2020, 3, 1, 0, 0, 0, 0, ny)}
	// 03:00 UTC on March 2 is still March 1 in New York.
	assert.True(t, dateOnly.Excludes(at(2020, 3, 2, 3, 0, 0)))
	assert.False(t, dateOnly.Excludes(at(2020, 3, 2, 6, 0, 0)))

	exact := NewDateExclusion(at(2020, 3, 1, 9, 0, 0))
	assert.True(t, exact.IsUTCExplicit)
	assert.True(t, exact.Excludes(time.Date(2020, 3, 1, 4, 0, 0, 0, ny)))
	assert.False(t, exact.Excludes(at(2020, 3, 1, 9, 0, 1)))
}

func TestFrequency(t *testing.T) {
	for _, name := range []string{"yearly", "MONTHLY", "Weekly", "DAILY", "HOURLY", "MINUTELY", "SECONDLY"} {
		f, err := ParseFrequency(name)
		require.NoError(t, err)
		assert.Equal(t, strings.ToUpper(name), f.String())
	}

	_, err := ParseFrequency("FORTNIGHTLY")
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Equal(t, "UNKNOWN", Frequency(42).String())
	assert.True(t, Yearly < Secondly)
}
