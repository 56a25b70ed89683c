package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	logger.Debug("hidden")
	logger.Info("saved", FieldKey, "expenses")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"key":"expenses"`) {
		t.Fatalf("expected JSON output, got %s", out)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).With(FieldRequestID, "req-1")
	ctx := WithContext(context.Background(), logger)

	FromContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request logger not used: %s", buf.String())
	}
	if FromContext(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger without a stored one")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithComponent(ComponentSync).WithKey("expenses").WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error should not add a field")
	}
	if len(f.ToSlice()) != 4 {
		t.Fatalf("unexpected slice: %v", f.ToSlice())
	}
}
