package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Options selects the handler behind the returned logger.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New returns a slog.Logger for the service. Format "otel" writes to the
// global OpenTelemetry logger provider; "json" and "text" write to Output
// (stderr when nil).
func New(service string, opts Options) *slog.Logger {
	if strings.EqualFold(opts.Format, "otel") {
		return slog.New(otelslog.NewHandler(service))
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	return slog.New(handler).With("service", service)
}

// ParseLevel maps a config level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
