package recurrence

import "time"

// Constraint filters occurrences during expansion. Implementations must be
// stateless so one value can serve concurrent Transform calls.
type Constraint interface {
	// Test reports whether t is kept.
	Test(t time.Time) bool
	// StopsTransformer reports whether a rejection of t ends generation,
	// because no later occurrence could pass either.
	StopsTransformer(t time.Time) bool
}

// BeforeConstraint keeps occurrences before Before. The first rejection
// ends generation.
type BeforeConstraint struct {
	Before    time.Time
	Inclusive bool
}

func (c BeforeConstraint) Test(t time.Time) bool {
	return isBefore(t, c.Before, c.Inclusive)
}

func (c BeforeConstraint) StopsTransformer(t time.Time) bool {
	return !c.Test(t)
}

// AfterConstraint keeps occurrences after After. It never stops generation.
type AfterConstraint struct {
	After     time.Time
	Inclusive bool
}

func (c AfterConstraint) Test(t time.Time) bool {
	return isAfter(t, c.After, c.Inclusive)
}

func (c AfterConstraint) StopsTransformer(time.Time) bool {
	return false
}

// BetweenConstraint keeps occurrences between After and Before. Once a
// rejected occurrence lies past Before, generation stops.
type BetweenConstraint struct {
	After     time.Time
	Before    time.Time
	Inclusive bool
}

func (c BetweenConstraint) Test(t time.Time) bool {
	return inRange(t, c.After, c.Before, c.Inclusive)
}

func (c BetweenConstraint) StopsTransformer(t time.Time) bool {
	return !isBefore(t, c.Before, c.Inclusive)
}
