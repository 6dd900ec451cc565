// Command recurr expands an RRULE and prints its occurrences.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/cyp0633/librecur/icalrule"
	"github.com/cyp0633/librecur/internal/config"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/xcal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := config.NewFlagSet("recurr")
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	log := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "recurr"),
	)

	cfg, err := config.Load(flags)
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return 2
	}

	log = slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "recurr"),
	)

	text := cfg.Rule
	if text == "" && flags.NArg() > 0 {
		text = strings.Join(flags.Args(), ";")
	}
	if text == "" {
		log.Error("no rule given; pass --rule or a positional RRULE")
		return 2
	}

	rule, err := recurrence.ParseRule(text, cfg.Location)
	if err != nil {
		log.Error("rule parse failed", slog.Any("err", err), slog.String("rule", text))
		return 1
	}

	engine := recurrence.NewEngineWithConfig(recurrence.EngineConfig{
		LastDayOfMonthFix: cfg.LastDayOfMonthFix,
		EmptyYearLimit:    cfg.EmptyYearLimit,
		Logger:            log,
	})
	defer engine.Close()

	log.Debug("expanding rule", slog.String("rule", rule.String()), slog.String("format", cfg.Format))

	if err := write(ctx, stdout, engine, rule, cfg); err != nil {
		log.Error("expansion failed", slog.Any("err", err))
		return 1
	}
	return 0
}

func write(ctx context.Context, w io.Writer, engine *recurrence.Engine, rule *recurrence.Rule, cfg config.Config) error {
	switch cfg.Format {
	case config.FormatICS:
		if rule.StartDate().IsAbsent() {
			rule.SetStartDate(time.Now().In(cfg.Location).Truncate(time.Second))
		}
		event, err := icalrule.NewEvent(rule, cfg.Summary)
		if err != nil {
			return err
		}
		instances, err := icalrule.ExpandComponent(ctx, engine, event.Component, cfg.Location, cfg.ExpansionOptions())
		if err != nil {
			return err
		}
		out, err := icalrule.EncodeComponents(instances)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err

	case config.FormatXCal:
		out, err := xcal.MarshalRule(rule)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err

	default:
		result, err := engine.Transform(ctx, rule, cfg.ExpansionOptions())
		if err != nil {
			return err
		}
		for _, r := range result {
			if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", r.Index, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339)); err != nil {
				return err
			}
		}
		return nil
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
