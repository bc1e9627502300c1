package observability

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
)

// Instrument installs the default slog logger. Logs go to w so that stdout
// stays free for command output.
func Instrument(w io.Writer, level slog.Level, logFormat string) error {
	handler, err := newHandler(w, level, logFormat)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(handler))

	return nil
}

// ParseLevel converts debug|info|warn|error into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// LibraryLogger adapts the default slog logger to the Printf-style logger
// accepted by the client packages. Records are emitted at level.
func LibraryLogger(level slog.Level) *log.Logger {
	return slog.NewLogLogger(slog.Default().Handler(), level)
}

// newHandler creates a handler for human-readable or JSON logs.
func newHandler(w io.Writer, level slog.Level, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text)", logFormat)
	}

	return handler, nil
}
