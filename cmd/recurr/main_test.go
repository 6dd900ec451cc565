package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Text(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--rule", "FREQ=DAILY;COUNT=2;DTSTART=20240101T090000Z;DTEND=20240101T100000Z"}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Equal(t,
		"1\t2024-01-01T09:00:00Z\t2024-01-01T10:00:00Z\n"+
			"2\t2024-01-02T09:00:00Z\t2024-01-02T10:00:00Z\n",
		stdout.String())
}

func TestRun_PositionalRuleAndConstraint(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--tz=Europe/Berlin", "--after=2024-01-02T00:00:00Z",
		"FREQ=DAILY", "COUNT=3", "DTSTART=20240101T090000",
	}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(t, []string{
		"1\t2024-01-02T09:00:00+01:00\t2024-01-02T09:00:00+01:00",
		"2\t2024-01-03T09:00:00+01:00\t2024-01-03T09:00:00+01:00",
	}, lines)
}

func TestRun_ICS(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--format=ics", "--summary=Standup",
		"--rule=FREQ=WEEKLY;COUNT=2;DTSTART=20240101T090000Z",
	}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	out := stdout.String()
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "RECURRENCE-ID:20240108T090000Z")
	assert.Contains(t, out, "SUMMARY:Standup")
	assert.NotContains(t, out, "RRULE")
}

func TestRun_XCal(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--format=xcal", "--rule=FREQ=MONTHLY;BYMONTHDAY=-1;COUNT=3"}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "<bymonthday>-1</bymonthday>")
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"Unknown flag", []string{"--frobnicate"}, 2},
		{"No rule", []string{}, 2},
		{"Bad config", []string{"--limit=-1", "--rule=FREQ=DAILY"}, 2},
		{"Bad rule", []string{"--rule=FREQ=DAILY;BYMONTH=13"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			assert.Equal(t, tt.code, code)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLogLevel(input), input)
	}
}
