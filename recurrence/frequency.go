package recurrence

import "strings"

// Frequency is the period a rule steps by. Coarser frequencies compare lower.
type Frequency int

const (
	Yearly Frequency = iota
	Monthly
	Weekly
	Daily
	Hourly
	Minutely
	Secondly
)

var frequencyNames = [...]string{"YEARLY", "MONTHLY", "WEEKLY", "DAILY", "HOURLY", "MINUTELY", "SECONDLY"}

func (f Frequency) String() string {
	if !f.valid() {
		return "UNKNOWN"
	}
	return frequencyNames[f]
}

func (f Frequency) valid() bool {
	return f >= Yearly && f <= Secondly
}

// ParseFrequency maps an RFC 5545 FREQ token to a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range frequencyNames {
		if n == name {
			return Frequency(i), nil
		}
	}
	return 0, ruleError("unknown frequency %q", s)
}
