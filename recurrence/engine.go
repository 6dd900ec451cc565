package recurrence

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/cyp0633/librecur/internal/datemath"
)

// maxYear is the last year generation may reach.
const maxYear = 9999

// Engine expands rules into occurrence collections.
type Engine struct {
	cache  *RecurrenceCache
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates an engine with DefaultEngineConfig.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig)
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Close releases the result cache, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats reports cache usage; zero when caching is off.
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// Transform expands rule into its occurrences, merged with RDATE, minus
// EXDATE, sorted by start and indexed from 1. The rule is only read.
//
// ctx is checked once per period; a cancelled context aborts with its error
// and no partial result.
func (e *Engine) Transform(ctx context.Context, rule *Rule, opts ExpansionOptions) (Collection, error) {
	if rule == nil {
		return nil, &Error{Kind: KindMissingData, Message: "no rule to transform"}
	}
	if opts.VirtualLimit <= 0 {
		return nil, fieldError("virtualLimit", "must be positive, got %d", opts.VirtualLimit)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	cacheable := e.cache != nil && opts.Constraint == nil && rule.StartDate().IsPresent()
	var key string
	if cacheable {
		key = cacheKey(rule, opts, e.config.LastDayOfMonthFix, e.config.EmptyYearLimit)
		if result, ok := e.cache.Get(key); ok {
			e.logger.Debug("expansion served from cache", "occurrences", len(result))
			return result, nil
		}
	}

	result, err := e.transform(ctx, rule, opts)
	if err != nil {
		return nil, err
	}

	if cacheable {
		e.cache.Set(key, result)
	}
	return result, nil
}

func (e *Engine) transform(ctx context.Context, rule *Rule, opts ExpansionOptions) (Collection, error) {
	start := e.resolveStart(rule)
	end := start
	if t, ok := rule.EndDate().Get(); ok {
		end = t
	}
	span := newCivilSpan(start, end)

	x := &expansion{
		plan:   newPlan(rule, start, e.config.LastDayOfMonthFix),
		opts:   opts,
		span:   span,
		logger: e.logger,
	}
	if err := x.run(ctx, e.config.EmptyYearLimit); err != nil {
		return nil, err
	}

	result := x.results
	for _, d := range rule.rDates {
		result = append(result, Recurrence{Start: d.Date, End: d.Date})
	}
	if len(rule.exDates) > 0 {
		result = slices.DeleteFunc(result, func(r Recurrence) bool {
			return slices.ContainsFunc(rule.exDates, func(x DateExclusion) bool {
				return x.Excludes(r.Start)
			})
		})
	}

	slices.SortStableFunc(result, func(a, b Recurrence) int {
		return a.Start.Compare(b.Start)
	})
	for i := range result {
		result[i].Index = i + 1
	}
	if result == nil {
		result = Collection{}
	}
	return result, nil
}

// resolveStart returns DTSTART truncated to whole seconds, or the current
// time in UNTIL's zone (the rule location without UNTIL).
func (e *Engine) resolveStart(rule *Rule) time.Time {
	if t, ok := rule.StartDate().Get(); ok {
		return t.Truncate(time.Second)
	}
	loc := rule.Location()
	if u, ok := rule.Until().Get(); ok {
		loc = u.Location()
	}
	return e.config.Now().In(loc).Truncate(time.Second)
}

// civilSpan is an occurrence length in whole calendar days plus a clock
// remainder, so all-day events keep their length across DST changes.
type civilSpan struct {
	days  int
	clock time.Duration
}

func newCivilSpan(start, end time.Time) civilSpan {
	end = end.In(start.Location())
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	days := int(time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).Sub(time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)) / (24 * time.Hour))
	return civilSpan{days: days, clock: end.Sub(start.AddDate(0, 0, days))}
}

func (s civilSpan) addTo(t time.Time) time.Time {
	return t.AddDate(0, 0, s.days).Add(s.clock)
}

// expansion is the state of one generation run.
type expansion struct {
	plan   *plan
	opts   ExpansionOptions
	span   civilSpan
	logger *slog.Logger

	results   Collection
	remaining int
	total     int
}

// run walks the periods from the start date until a bound ends generation.
func (x *expansion) run(ctx context.Context, emptyYearLimit int) error {
	p := x.plan
	if p.hasCount {
		if p.count == 0 {
			return nil
		}
		x.remaining = p.count
	}

	loc := p.start.Location()
	year, month, day := p.start.Date()
	hour, minute, second := p.start.Clock()
	weekday := datemath.DayOfWeek(p.start)
	times := p.initialTimeSet(hour, minute, second)
	lastHit := year

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		info := datemath.NewInfo(year, month, day)
		set := p.daySet(info, year, month, day)
		days := p.filter(info, set)
		filtered := len(days) < len(set.days)

		candidates := p.candidates(info, days, times, loc)
		if len(candidates) > 0 {
			lastHit = year
		}
		for _, t := range candidates {
			if x.emit(t) {
				return nil
			}
		}

		fixDay := false
		switch p.freq {
		case Yearly:
			year += p.interval
		case Monthly:
			m := int(month) - 1 + p.interval
			year += m / 12
			month = time.Month(m%12 + 1)
		case Weekly:
			if p.weekStart > weekday {
				day += -(weekday + 1 + (6 - p.weekStart)) + p.interval*7
			} else {
				day += -(weekday - p.weekStart) + p.interval*7
			}
			weekday = p.weekStart
			fixDay = true
		case Daily:
			day += p.interval
			fixDay = true
		case Hourly:
			if filtered {
				// Skip to the last step of the day.
				hour += ((23 - hour) / p.interval) * p.interval
			}
			var ok bool
			for tries := 0; tries < 24; tries++ {
				hour += p.interval
				if div, mod := datemath.Divmod(hour, 24); div != 0 {
					hour = mod
					day += div
					fixDay = true
				}
				if ok = len(p.byHour) == 0 || slices.Contains(p.byHour, hour); ok {
					break
				}
			}
			if !ok {
				x.logger.Debug("hourly cadence never reaches BYHOUR", "interval", p.interval)
				return nil
			}
			times = p.subDailyTimeSet(hour, minute, second)
		case Minutely:
			if filtered {
				minute += ((1439 - (hour*60 + minute)) / p.interval) * p.interval
			}
			var ok bool
			for tries := 0; tries < 1440; tries++ {
				minute += p.interval
				if div, mod := datemath.Divmod(minute, 60); div != 0 {
					minute = mod
					hour += div
					if div, mod := datemath.Divmod(hour, 24); div != 0 {
						hour = mod
						day += div
						fixDay = true
					}
				}
				ok = (len(p.byHour) == 0 || slices.Contains(p.byHour, hour)) &&
					(len(p.byMinute) == 0 || slices.Contains(p.byMinute, minute))
				if ok {
					break
				}
			}
			if !ok {
				x.logger.Debug("minutely cadence never reaches BYHOUR/BYMINUTE", "interval", p.interval)
				return nil
			}
			times = p.subDailyTimeSet(hour, minute, second)
		case Secondly:
			if filtered {
				second += ((86399 - (hour*3600 + minute*60 + second)) / p.interval) * p.interval
			}
			var ok bool
			for tries := 0; tries < 86400; tries++ {
				second += p.interval
				if div, mod := datemath.Divmod(second, 60); div != 0 {
					second = mod
					minute += div
					if div, mod := datemath.Divmod(minute, 60); div != 0 {
						minute = mod
						hour += div
						if div, mod := datemath.Divmod(hour, 24); div != 0 {
							hour = mod
							day += div
							fixDay = true
						}
					}
				}
				ok = (len(p.byHour) == 0 || slices.Contains(p.byHour, hour)) &&
					(len(p.byMinute) == 0 || slices.Contains(p.byMinute, minute)) &&
					(len(p.bySecond) == 0 || slices.Contains(p.bySecond, second))
				if ok {
					break
				}
			}
			if !ok {
				x.logger.Debug("secondly cadence never reaches BY time rules", "interval", p.interval)
				return nil
			}
			times = p.subDailyTimeSet(hour, minute, second)
		}

		if fixDay && day > 28 {
			year, month, day = time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
		}
		if year > maxYear {
			x.logger.Debug("expansion reached the last supported year", "year", maxYear)
			return nil
		}
		if year-lastHit > emptyYearLimit {
			x.logger.Debug("expansion stopped after empty years",
				"years", emptyYearLimit,
				"last_match_year", lastHit)
			return nil
		}
	}
}

// emit applies UNTIL, the start bound, the constraint, COUNT and the virtual
// limit to one candidate. It reports whether generation must stop.
func (x *expansion) emit(t time.Time) bool {
	p := x.plan
	if p.hasUntil && t.After(p.until) {
		return true
	}
	if t.Before(p.start) {
		return false
	}

	if c := x.opts.Constraint; c != nil && !c.Test(t) {
		if c.StopsTransformer(t) {
			return true
		}
		if !x.opts.CountConstraintFailures {
			return false
		}
	} else {
		x.results = append(x.results, Recurrence{Start: t, End: x.span.addTo(t)})
	}

	if p.hasCount {
		x.remaining--
		if x.remaining == 0 {
			return true
		}
	}
	x.total++
	if x.total >= x.opts.VirtualLimit {
		x.logger.Debug("expansion truncated at virtual limit", "limit", x.opts.VirtualLimit)
		return true
	}
	return false
}
