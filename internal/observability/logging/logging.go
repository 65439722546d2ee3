package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	ServiceName string
	Environment string
	// Level is a slog level name such as "debug" or "warn+2"; unknown values
	// fall back to info.
	Level string
	// Format is "json" (default) or "text".
	Format string
	// Output defaults to stdout.
	Output io.Writer
}

// ParseLevel maps a level name onto a slog.Level, reporting whether it was
// recognised.
func ParseLevel(name string) (slog.Level, bool) {
	var lvl slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, false
	}
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, false
	}
	return lvl, true
}

// NewLogger builds the process logger. Every record carries the service and
// environment; debug logging also records the call site.
func NewLogger(cfg Config) *slog.Logger {
	lvl, _ := ParseLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	return slog.New(h.WithAttrs([]slog.Attr{
		slog.String("service", cfg.ServiceName),
		slog.String("env", cfg.Environment),
	}))
}
