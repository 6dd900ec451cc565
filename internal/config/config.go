// Package config loads recurr settings from flags and RECURR_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cyp0633/librecur/recurrence"
)

// Output formats understood by the CLI.
const (
	FormatText = "text"
	FormatICS  = "ics"
	FormatXCal = "xcal"
)

type Config struct {
	Rule                    string
	Location                *time.Location
	Summary                 string
	VirtualLimit            int
	LastDayOfMonthFix       bool
	EmptyYearLimit          int
	CountConstraintFailures bool
	After                   mo.Option[time.Time]
	Before                  mo.Option[time.Time]
	Inclusive               bool
	Format                  string
	LogLevel                string
}

// flagKeys maps viper keys to flag names.
var flagKeys = map[string]string{
	"rule":             "rule",
	"tz":               "tz",
	"summary":          "summary",
	"limit":            "limit",
	"fix_last_day":     "fix-last-day",
	"empty_year_limit": "empty-year-limit",
	"count_failures":   "count-failures",
	"after":            "after",
	"before":           "before",
	"inclusive":        "inclusive",
	"format":           "format",
	"log.level":        "log-level",
}

// NewFlagSet declares the recurr command line.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("rule", "", "RRULE text, e.g. FREQ=WEEKLY;COUNT=3;DTSTART=20240101T090000")
	fs.String("tz", "UTC", "zone for floating date values")
	fs.String("summary", "", "SUMMARY of the generated event (ics format)")
	fs.Int("limit", recurrence.DefaultVirtualLimit, "maximum occurrences generated")
	fs.Bool("fix-last-day", false, "fall back to the last day of shorter months")
	fs.Int("empty-year-limit", recurrence.DefaultEmptyYearLimit, "years without a match before giving up")
	fs.Bool("count-failures", true, "occurrences rejected by --after/--before still consume COUNT")
	fs.String("after", "", "only keep occurrences after this RFC 3339 time")
	fs.String("before", "", "only keep occurrences before this RFC 3339 time")
	fs.Bool("inclusive", false, "make --after/--before bounds inclusive")
	fs.String("format", FormatText, "output format: text, ics or xcal")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	return fs
}

// Load merges defaults, RECURR_* environment variables and flags, with flags
// set on the command line taking precedence. flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RECURR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rule", "")
	v.SetDefault("tz", "UTC")
	v.SetDefault("summary", "")
	v.SetDefault("limit", recurrence.DefaultVirtualLimit)
	v.SetDefault("fix_last_day", false)
	v.SetDefault("empty_year_limit", recurrence.DefaultEmptyYearLimit)
	v.SetDefault("count_failures", true)
	v.SetDefault("after", "")
	v.SetDefault("before", "")
	v.SetDefault("inclusive", false)
	v.SetDefault("format", FormatText)
	v.SetDefault("log.level", "warn")

	if err := v.BindEnv("log.level", "RECURR_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return Config{}, fmt.Errorf("bind env log.level: %w", err)
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	tz := strings.TrimSpace(v.GetString("tz"))
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("invalid time zone %q: %w", tz, err)
	}

	after, err := parseBound("after", v.GetString("after"), loc)
	if err != nil {
		return Config{}, err
	}
	before, err := parseBound("before", v.GetString("before"), loc)
	if err != nil {
		return Config{}, err
	}

	limit := v.GetInt("limit")
	if limit <= 0 {
		return Config{}, fmt.Errorf("limit must be positive, got %d", limit)
	}

	format := strings.ToLower(strings.TrimSpace(v.GetString("format")))
	switch format {
	case FormatText, FormatICS, FormatXCal:
	default:
		return Config{}, fmt.Errorf("unknown format %q", format)
	}

	return Config{
		Rule:                    strings.TrimSpace(v.GetString("rule")),
		Location:                loc,
		Summary:                 v.GetString("summary"),
		VirtualLimit:            limit,
		LastDayOfMonthFix:       v.GetBool("fix_last_day"),
		EmptyYearLimit:          v.GetInt("empty_year_limit"),
		CountConstraintFailures: v.GetBool("count_failures"),
		After:                   after,
		Before:                  before,
		Inclusive:               v.GetBool("inclusive"),
		Format:                  format,
		LogLevel:                v.GetString("log.level"),
	}, nil
}

// parseBound reads an RFC 3339 time, or a bare date-time in loc.
func parseBound(name, value string, loc *time.Location) (mo.Option[time.Time], error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return mo.None[time.Time](), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return mo.Some(t), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return mo.Some(t), nil
		}
	}
	return mo.None[time.Time](), fmt.Errorf("invalid %s time %q", name, value)
}

// Constraint builds the expansion constraint described by --after and
// --before; nil when neither is set.
func (c Config) Constraint() recurrence.Constraint {
	after, hasAfter := c.After.Get()
	before, hasBefore := c.Before.Get()
	switch {
	case hasAfter && hasBefore:
		return recurrence.BetweenConstraint{After: after, Before: before, Inclusive: c.Inclusive}
	case hasAfter:
		return recurrence.AfterConstraint{After: after, Inclusive: c.Inclusive}
	case hasBefore:
		return recurrence.BeforeConstraint{Before: before, Inclusive: c.Inclusive}
	default:
		return nil
	}
}

// ExpansionOptions returns the per-call options for recurrence.Engine.
func (c Config) ExpansionOptions() recurrence.ExpansionOptions {
	return recurrence.ExpansionOptions{
		VirtualLimit:            c.VirtualLimit,
		Constraint:              c.Constraint(),
		CountConstraintFailures: c.CountConstraintFailures,
	}
}
