package internal

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds the service logger: JSON with RFC3339Nano timestamps in
// prod, human-readable text elsewhere. Every line carries the service name
// so the three pipeline services can share one log sink.
func NewLogger(w io.Writer, env, level, service string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if env == "prod" {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		}
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h)
	if service != "" {
		logger = logger.With(slog.String("service", service))
	}
	return logger
}
