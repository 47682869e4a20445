package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for engine output capture
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where per-feed engine diagnostics go. The engine's stdout
// is always discarded; its stderr is retained under Dir as
// Dir/<name>.stderr.log with lumberjack rotation. An empty Dir disables
// capture entirely.
type Config struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// StderrWriter returns the rotating writer for one feed's engine stderr, or
// nil when capture is disabled (callers leave cmd.Stderr nil, which the os
// routes to the null device).
func (c Config) StderrWriter(name string) io.WriteCloser {
	if c.Dir == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name)),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Slog describes the application logger built on log/slog.
type Slog struct {
	Level string // debug|info|warn|error (default info)
	Color bool   // ANSI-colored level prefix on stderr
}

// NewSlogger builds the application *slog.Logger. Unknown level strings fall
// back to info.
func (s Slog) NewSlogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(s.Level)}
	var h slog.Handler
	if s.Color {
		h = NewColorTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

// Setup installs the configured logger as the slog default.
func (s Slog) Setup() {
	slog.SetDefault(s.NewSlogger())
}

// ParseLevel maps a config string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
