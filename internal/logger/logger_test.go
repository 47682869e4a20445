package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"INVALID": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStderrWriterDisabledWithoutDir(t *testing.T) {
	if w := (Config{}).StderrWriter("cam1"); w != nil {
		t.Fatalf("empty Dir produced a writer")
	}
}

func TestStderrWriterCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := Config{Dir: dir}.StderrWriter("cam1")
	if w == nil {
		t.Fatalf("no writer for configured dir")
	}
	if _, err := w.Write([]byte("frame dropped\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "cam1.stderr.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "frame dropped") {
		t.Fatalf("log content missing: %q", string(b))
	}
}

func TestColorTextHandlerColorsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	log := slog.New(h)
	log.Warn("stalled", "feed", "cam2")
	out := buf.String()
	if !strings.Contains(out, "\033[33m") {
		t.Fatalf("warn record not colorized: %q", out)
	}
	if !strings.Contains(out, "stalled") || !strings.Contains(out, "cam2") {
		t.Fatalf("record content missing: %q", out)
	}
}

func TestNewSloggerRespectsLevel(t *testing.T) {
	l := Slog{Level: "error", Color: false}.NewSlogger()
	ctx := context.Background()
	if l.Enabled(ctx, slog.LevelWarn) {
		t.Fatalf("warn enabled at error level")
	}
	if !l.Enabled(ctx, slog.LevelError) {
		t.Fatalf("error disabled at error level")
	}
}
