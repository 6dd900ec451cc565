package recurrence

import (
	"time"
)

// Recurrence is one generated occurrence.
type Recurrence struct {
	Start time.Time // Start time of this occurrence
	End   time.Time // Start plus the rule's DTSTART..DTEND span
	Index int       // 1-based position in the returned collection
}

// Collection is an ordered list of occurrences as returned by Transform.
type Collection []Recurrence

// ExpansionOptions controls a single Transform call.
type ExpansionOptions struct {
	// VirtualLimit caps the number of generated occurrences for every rule,
	// including one whose COUNT is larger. It must be positive.
	VirtualLimit int
	// Constraint filters generated occurrences; nil accepts everything.
	Constraint Constraint
	// CountConstraintFailures makes rejected occurrences still consume the
	// COUNT budget and the virtual limit.
	CountConstraintFailures bool
}

// DefaultVirtualLimit is the conventional cap of two years of daily events.
const DefaultVirtualLimit = 732

// DefaultExpansionOptions is what most callers want.
var DefaultExpansionOptions = ExpansionOptions{
	VirtualLimit:            DefaultVirtualLimit,
	CountConstraintFailures: true,
}

// WithConstraint returns a copy of o using c.
func (o ExpansionOptions) WithConstraint(c Constraint) ExpansionOptions {
	o.Constraint = c
	return o
}

// StartsBetween keeps occurrences starting between after and before.
func (c Collection) StartsBetween(after, before time.Time, inclusive bool) Collection {
	return c.filter(func(r Recurrence) bool {
		return inRange(r.Start, after, before, inclusive)
	})
}

// StartsBefore keeps occurrences starting before t.
func (c Collection) StartsBefore(t time.Time, inclusive bool) Collection {
	return c.filter(func(r Recurrence) bool {
		return isBefore(r.Start, t, inclusive)
	})
}

// StartsAfter keeps occurrences starting after t.
func (c Collection) StartsAfter(t time.Time, inclusive bool) Collection {
	return c.filter(func(r Recurrence) bool {
		return isAfter(r.Start, t, inclusive)
	})
}

// EndsBetween keeps occurrences ending between after and before.
func (c Collection) EndsBetween(after, before time.Time, inclusive bool) Collection {
	return c.filter(func(r Recurrence) bool {
		return inRange(r.End, after, before, inclusive)
	})
}

// EndsBefore keeps occurrences ending before t.
func (c Collection) EndsBefore(t time.Time, inclusive bool) Collection {
	return c.filter(func(r Recurrence) bool {
		return isBefore(r.End, t, inclusive)
	})
}

// EndsAfter keeps occurrences ending after t.
func (c Collection) EndsAfter(t time.Time, inclusive bool) Collection {
	return c.filter(func(r Recurrence) bool {
		return isAfter(r.End, t, inclusive)
	})
}

// Starts returns the start times in order.
func (c Collection) Starts() []time.Time {
	out := make([]time.Time, len(c))
	for i, r := range c {
		out[i] = r.Start
	}
	return out
}

// filter keeps the original indexes so callers can relate a subset back to
// the full expansion.
func (c Collection) filter(keep func(Recurrence) bool) Collection {
	out := Collection{}
	for _, r := range c {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func isBefore(t, bound time.Time, inclusive bool) bool {
	return t.Before(bound) || (inclusive && t.Equal(bound))
}

func isAfter(t, bound time.Time, inclusive bool) bool {
	return t.After(bound) || (inclusive && t.Equal(bound))
}

func inRange(t, after, before time.Time, inclusive bool) bool {
	return isAfter(t, after, inclusive) && isBefore(t, before, inclusive)
}
