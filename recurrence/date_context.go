package recurrence

import "time"

// DateInclusion is an RDATE entry. HasTime and IsUTCExplicit remember how the
// value was written so it can be serialized back the same way.
type DateInclusion struct {
	Date          time.Time
	HasTime       bool
	IsUTCExplicit bool
}

// DateExclusion is an EXDATE entry. Without a time component it removes every
// occurrence falling on that calendar date in the exclusion's zone.
type DateExclusion struct {
	Date          time.Time
	HasTime       bool
	IsUTCExplicit bool
}

// NewDateInclusion records t as a date-time inclusion.
func NewDateInclusion(t time.Time) DateInclusion {
	return DateInclusion{Date: t, HasTime: true, IsUTCExplicit: t.Location() == time.UTC}
}

// NewDateExclusion records t as a date-time exclusion.
func NewDateExclusion(t time.Time) DateExclusion {
	return DateExclusion{Date: t, HasTime: true, IsUTCExplicit: t.Location() == time.UTC}
}

// Excludes reports whether the exclusion removes an occurrence starting at t.
func (x DateExclusion) Excludes(t time.Time) bool {
	if x.HasTime {
		return t.Equal(x.Date)
	}
	ty, tm, td := t.In(x.Date.Location()).Date()
	xy, xm, xd := x.Date.Date()
	return ty == xy && tm == xm && td == xd
}
