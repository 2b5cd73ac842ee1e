package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the encoding of a log line.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config selects what is logged and where.
type Config struct {
	Level  slog.Level
	Format Format

	// Output defaults to os.Stderr.
	Output io.Writer

	// File, when set, receives every record as JSON in addition to Output.
	// Only Open honours it.
	File string

	AddSource bool
}

// New returns a logger writing cfg.Format lines to cfg.Output.
func New(cfg Config) *slog.Logger {
	return slog.New(newHandler(cfg.Output, cfg.Format, cfg))
}

// Open is New plus cfg.File. The returned close function releases the
// file and is safe to call when no file was opened.
func Open(cfg Config) (*slog.Logger, func() error, error) {
	if cfg.File == "" {
		return New(cfg), func() error { return nil }, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	h := fanout{
		newHandler(cfg.Output, cfg.Format, cfg),
		newHandler(f, FormatJSON, cfg),
	}
	return slog.New(h), f.Close, nil
}

func newHandler(w io.Writer, format Format, cfg Config) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel accepts the slog level names in any case ("debug", "INFO",
// "warn+2") plus "warning". Anything else is slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseFormat accepts "json" in any case. Anything else is FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}
