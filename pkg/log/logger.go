// Package log provides structured logging for the forecasting pipeline.
//
// The package configures Go's log/slog with a JSON handler whose attribute
// names follow the severity/message convention consumed by our log collector,
// and wraps it so that errors carrying cockroachdb/errors stack traces are
// emitted with a stacktrace attribute. Warnings raised through pkg/errors can
// additionally be routed to a zerolog sink for structured warning streams.
package log

import (
	"fmt"
	"log/slog"
	"os"
)

// SetupLogger configures the process-wide logger.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{
					Key:   "severity",
					Value: attr.Value,
				}
			case slog.MessageKey:
				attr = slog.Attr{
					Key:   "message",
					Value: attr.Value,
				}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(os.Stderr, &ops)
	errFmtHandler := WrapByErrFmtHandler(handler)
	slog.SetDefault(slog.New(errFmtHandler))
}

// ToLogLevel converts a level name to a slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// GetLoggerWithName returns a logger scoped to a pipeline component.
func GetLoggerWithName(name string) *slog.Logger {
	return slog.Default().With(slog.String(ComponentKey, name))
}
