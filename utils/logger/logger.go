package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init builds the process logger, installs it as slog's default and returns
// it. With enableOTel, records are also emitted through the global OTel
// logger provider.
func Init(enableOTel bool) *slog.Logger {
	logger := New(os.Stdout, ParseLevel(os.Getenv("LOG_LEVEL")), enableOTel)
	slog.SetDefault(logger)
	GlobalContext = NewContextLogger(logger)
	return logger
}

// New creates a JSON logger writing to w. trace_id and span_id are added
// whenever the record's context carries a span.
func New(w io.Writer, level slog.Level, enableOTel bool) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	var handler slog.Handler = NewTraceContextHandler(jsonHandler)
	if enableOTel {
		handler = NewMultiHandler(handler, NewOTelHandler(level))
	}
	return slog.New(handler).With("service", "passforge")
}

// ParseLevel maps LOG_LEVEL values onto slog levels. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
