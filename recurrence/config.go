package recurrence

import (
	"log/slog"
	"time"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// LastDayOfMonthFix makes a rule started on day 29-31 fall back to the
	// last day of shorter months instead of skipping them.
	LastDayOfMonthFix bool

	// EmptyYearLimit stops generation once this many years pass without a
	// single candidate. Unsatisfiable rules such as BYMONTH=2;BYMONTHDAY=30
	// end here.
	EmptyYearLimit int

	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// Logger receives truncation events at debug level; nil means slog.Default().
	Logger *slog.Logger
	// Now supplies the start date of rules without DTSTART; nil means time.Now.
	Now func() time.Time
}

// DefaultEmptyYearLimit is one full Gregorian cycle.
const DefaultEmptyYearLimit = 400

// DefaultEngineConfig expands every call from scratch.
var DefaultEngineConfig = EngineConfig{
	EmptyYearLimit: DefaultEmptyYearLimit,
}

// CachedEngineConfig is for servers expanding the same rules repeatedly.
var CachedEngineConfig = EngineConfig{
	EmptyYearLimit: DefaultEmptyYearLimit,
	CacheEnabled:   true,
	CacheConfig:    DefaultCacheConfig,
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig) *Engine {
	if config.EmptyYearLimit <= 0 {
		config.EmptyYearLimit = DefaultEmptyYearLimit
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	var cache *RecurrenceCache
	if config.CacheEnabled {
		cache = NewRecurrenceCache(config.CacheConfig)
	}

	return &Engine{
		cache:  cache,
		config: config,
		logger: config.Logger.With("component", "recurrence"),
	}
}
