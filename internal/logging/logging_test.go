package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWritesToProcessHandler(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, FormatText, slog.LevelDebug)
	t.Cleanup(func() { Setup(&bytes.Buffer{}, FormatText, slog.LevelInfo) })

	logger := NewLogger("test/scope").With("session", "s-1").WithGroup("turn")
	logger.Debug("dispatched", "kind", "WHITEBOARD")

	out := buf.String()
	for _, want := range []string{"msg=dispatched", "session=s-1", "turn.kind=WHITEBOARD"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestProcessHandlerIsResolvedLazily(t *testing.T) {
	logger := NewLogger("test/scope")

	var buf bytes.Buffer
	Setup(&buf, FormatJSON, slog.LevelWarn)
	t.Cleanup(func() { Setup(&bytes.Buffer{}, FormatText, slog.LevelInfo) })

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info record to be filtered, got %q", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected JSON warn record, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" debug ")
	if err != nil || level != slog.LevelDebug {
		t.Fatalf("expected debug, got %v (%v)", level, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}
