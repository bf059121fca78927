package indexdb

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with indexdb-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithIndex tags the logger with an index or archive entry name.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogFinalize logs the freeze of an index.
func (l *Logger) LogFinalize(dictionaries, tables int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("finalize failed",
			"dictionaries", dictionaries,
			"tables", tables,
			"error", err,
		)
		return
	}
	l.Debug("finalize completed",
		"dictionaries", dictionaries,
		"tables", tables,
		"elapsed", elapsed,
	)
}

// LogMerge logs a merge of one index into another.
func (l *Logger) LogMerge(rows int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("merge failed",
			"rows", rows,
			"error", err,
		)
		return
	}
	l.Debug("merge completed",
		"rows", rows,
		"elapsed", elapsed,
	)
}

// LogWrite logs the serialization of an index or archive.
func (l *Logger) LogWrite(target string, bytes int64, err error) {
	if err != nil {
		l.Error("write failed",
			"target", target,
			"error", err,
		)
		return
	}
	l.Info("write completed",
		"target", target,
		"bytes", bytes,
	)
}

// LogOpen logs opening an index, archive or archive entry.
func (l *Logger) LogOpen(kind, source string, err error) {
	if err != nil {
		l.Error("open failed",
			"kind", kind,
			"source", source,
			"error", err,
		)
		return
	}
	l.Debug("open completed",
		"kind", kind,
		"source", source,
	)
}
