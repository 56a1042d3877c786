package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandlerOutput(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	h := newPrettyHandler(&b, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h)

	log.Info("op.getcode.ok",
		"account", "GitHub",
		"dur_ms", int64(42),
		"query", "a b",
	)

	out := b.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=op.getcode.ok",
		"account=GitHub",
		`query="a b"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("output not newline-terminated: %q", out)
	}
}

func TestPrettyHandlerHonorsLevel(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	h := newPrettyHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error disabled at warn level")
	}
}

func TestPrettyHandlerWithAttrsAndGroups(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	h := newPrettyHandler(&b, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h).With("component", "bridge").WithGroup("op")

	log.Info("queued", "kind", "get_code")

	out := b.String()
	if !strings.Contains(out, "component=bridge") {
		t.Fatalf("output %q missing component attr", out)
	}
	if !strings.Contains(out, "op.kind=get_code") {
		t.Fatalf("output %q missing grouped key", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: `""`},
		{in: "plain", want: "plain"},
		{in: "a b", want: `"a b"`},
		{in: "k=v", want: `"k=v"`},
	}
	for _, tc := range cases {
		if got := quoteIfNeeded(tc.in); got != tc.want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestLevelTagPlain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level slog.Level
		want  string
	}{
		{level: slog.LevelDebug, want: "[DEBUG]"},
		{level: slog.LevelInfo, want: "[INFO]"},
		{level: slog.LevelWarn, want: "[WARN]"},
		{level: slog.LevelError, want: "[ERROR]"},
	}
	for _, tc := range cases {
		if got := levelTag(tc.level, false); got != tc.want {
			t.Fatalf("levelTag(%v)=%q want=%q", tc.level, got, tc.want)
		}
	}
}

func TestPrettyValueFormatsDurations(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	h := newPrettyHandler(&b, nil, false)
	log := slog.New(h)

	log.Info("http.request", "duration_ms", int64(1500), "at", time.Unix(0, 0).UTC())

	out := b.String()
	if !strings.Contains(out, "duration=1500ms") {
		t.Fatalf("output %q missing remapped duration", out)
	}
}
