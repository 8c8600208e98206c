package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDefaultOnlyWarns(t *testing.T) {
	t.Parallel()
	l, ok := Default().(*SlogLogger)
	if !ok {
		t.Fatalf("Default() returned %T", Default())
	}
	ctx := context.Background()
	if l.logger.Enabled(ctx, slog.LevelInfo) {
		t.Fatal("default logger should drop info")
	}
	if !l.logger.Enabled(ctx, slog.LevelWarn) {
		t.Fatal("default logger should keep warnings")
	}
	if FromContext(ctx) == nil {
		t.Fatal("FromContext without a logger returned nil")
	}
}

func TestFormatsFilterByLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		format Format
		want   string
	}{
		{FormatPretty, "rank=2"},
		{FormatText, "rank=2"},
		{FormatJSON, `"rank":2`},
	}
	for _, tc := range tests {
		t.Run(string(tc.format), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log := NewWithFormat(&buf, tc.format, slog.LevelWarn)
			log.Info("tensor decomposed", "rank", 2)
			log.Debug("s-norm sweep")
			if buf.Len() > 0 {
				t.Fatalf("expected nothing below warn, got: %s", buf.String())
			}
			log.Warn("rank reduced", "rank", 2)
			out := buf.String()
			if !strings.Contains(out, "rank reduced") || !strings.Contains(out, tc.want) {
				t.Fatalf("expected warning with %s, got: %s", tc.want, out)
			}
		})
	}
}

func TestContextLoggerKeepsFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), JSON(&buf, slog.LevelDebug))

	log := FromContext(ctx).With("op", "decomp.Tensor")
	log.WithGroup("sketch").Debug("projected", "kind", "sparse-sign", "l", 7)

	out := buf.String()
	for _, want := range []string{`"op":"decomp.Tensor"`, `"sketch":{`, `"kind":"sparse-sign"`, `"l":7`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in output, got: %s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tc.input, tc.expected, got)
		}
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) || !h.Enabled(ctx, slog.LevelError) {
		t.Fatal("pretty handler ignores its level")
	}
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup(\"\") should return the same handler")
	}
}

func TestPrettyAttrs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		handle func(h slog.Handler) slog.Handler
		args   []any
		want   string
		reject string
	}{
		{"with attrs", func(h slog.Handler) slog.Handler {
			return h.WithAttrs([]slog.Attr{slog.String("route", "snorm")})
		}, nil, "route=snorm", ""},
		{"nested groups", func(h slog.Handler) slog.Handler {
			return h.WithGroup("decomp").WithGroup("id")
		}, []any{"k", 3}, "decomp.id.k=3", ""},
		{"quoted", nil, []any{"path", "my tensor.json"}, `path="my tensor.json"`, ""},
		{"equals quoted", nil, []any{"expr", "k=3"}, `expr="k=3"`, ""},
		{"bare", nil, []any{"strategy", "strong-rrqr"}, "strategy=strong-rrqr", `"strong-rrqr"`},
		{"float", nil, []any{"sketch_residual", 1.234567891e-9}, "sketch_residual=1.23457e-09", ""},
		{"duration", nil, []any{"elapsed", 1234567 * time.Nanosecond}, "elapsed=1.235ms", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			var h slog.Handler = NewPrettyHandler(&buf, nil)
			if tc.handle != nil {
				h = tc.handle(h)
			}
			slog.New(h).Info("msg", tc.args...)
			out := buf.String()
			if !strings.Contains(out, tc.want) {
				t.Fatalf("expected %s in output, got: %s", tc.want, out)
			}
			if tc.reject != "" && strings.Contains(out, tc.reject) {
				t.Fatalf("unexpected %s in output, got: %s", tc.reject, out)
			}
		})
	}
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected bool
	}{
		{"column-pivoted-qr", false},
		{"", false},
		{"two words", true},
		{"tab\there", true},
		{"line\nbreak", true},
		{`say "hi"`, true},
		{"k=2", true},
	}
	for _, tc := range tests {
		if got := needsQuoting(tc.input); got != tc.expected {
			t.Errorf("needsQuoting(%q): expected %v, got %v", tc.input, tc.expected, got)
		}
	}
}

func TestNopDiscards(t *testing.T) {
	t.Parallel()
	log := Nop()
	log.Error("dropped")
	log.With("k", 1).WithGroup("g").Warn("dropped")
}

func TestText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelDebug)
	log.Debug("sketch drawn", "rows", 8)
	if !strings.Contains(buf.String(), "rows=8") {
		t.Fatalf("expected rows=8 in text output, got: %s", buf.String())
	}
}

func TestFromVerbosity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		v        int
		expected slog.Level
	}{
		{-1, slog.LevelWarn},
		{0, slog.LevelWarn},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{5, slog.LevelDebug},
	}
	for _, tc := range tests {
		if got := FromVerbosity(tc.v); got != tc.expected {
			t.Errorf("FromVerbosity(%d): expected %v, got %v", tc.v, tc.expected, got)
		}
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Format{"": FormatPretty, "JSON": FormatJSON, " text ": FormatText, "pretty": FormatPretty} {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q): expected %q, got %q", in, want, got)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPrettyNoColorForBuffers(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	Pretty(&buf, slog.LevelInfo).Warn("plain")
	if strings.Contains(buf.String(), "\033[") {
		t.Fatalf("expected no escape codes for non-terminal writer, got: %q", buf.String())
	}
}

func TestPrettyForceColor(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil).ForceColor(true)
	slog.New(h).Error("loud")
	if !strings.Contains(buf.String(), colorRed) {
		t.Fatalf("expected red level color, got: %q", buf.String())
	}
}

func TestPrettyAddSource(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{AddSource: true})
	slog.New(h).Info("where")
	if !strings.Contains(buf.String(), "logger/logger_test.go:") {
		t.Fatalf("expected source location, got: %s", buf.String())
	}
}

func TestShortFile(t *testing.T) {
	t.Parallel()
	if got := shortFile("/a/b/c/d.go"); got != "c/d.go" {
		t.Fatalf("shortFile: got %q", got)
	}
	if got := shortFile("d.go"); got != "d.go" {
		t.Fatalf("shortFile: got %q", got)
	}
}
