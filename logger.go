package fastalloc

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Logger wraps slog.Logger with allocator-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
	anomalies *rate.Limiter
}

// anomalyRate bounds how often repeated anomalies are logged.
const anomalyRate = rate.Limit(1)

func newLogger(l *slog.Logger) *Logger {
	return &Logger{
		Logger:    l,
		anomalies: rate.NewLimiter(anomalyRate, 5),
	}
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return newLogger(slog.New(handler))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return newLogger(slog.New(handler))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return newLogger(slog.New(handler))
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return newLogger(slog.New(slog.DiscardHandler))
}

// WithHeap adds the heap id to the logger.
// The anomaly limiter is shared with the parent.
func (l *Logger) WithHeap(id uint32) *Logger {
	return &Logger{
		Logger:    l.Logger.With("heap", id),
		anomalies: l.anomalies,
	}
}

// LogReserve logs an OS reservation.
func (l *Logger) LogReserve(kind string, size int, err error) {
	ctx := context.Background()
	if err != nil {
		l.ErrorContext(ctx, "reserve failed",
			"kind", kind,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "reserved",
			"kind", kind,
			"size", size,
		)
	}
}

// LogRelease logs the release of a reservation. Failures leak the mapping
// and are rate limited, since a failing OS tends to fail repeatedly.
func (l *Logger) LogRelease(kind string, size int, err error) {
	ctx := context.Background()
	if err == nil {
		l.DebugContext(ctx, "released",
			"kind", kind,
			"size", size,
		)
		return
	}
	if !l.anomalies.AllowN(time.Now(), 1) {
		return
	}
	l.WarnContext(ctx, "release failed, mapping leaked",
		"kind", kind,
		"size", size,
		"error", err,
	)
}

// LogLimit logs a capacity limit that refused a request.
func (l *Logger) LogLimit(what string, size int, err error) {
	if !l.anomalies.AllowN(time.Now(), 1) {
		return
	}
	l.WarnContext(context.Background(), "capacity limit reached",
		"what", what,
		"size", size,
		"error", err,
	)
}

// LogHeap logs a heap lifecycle event.
func (l *Logger) LogHeap(event string, err error) {
	ctx := context.Background()
	if err != nil {
		l.ErrorContext(ctx, "heap "+event+" failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "heap "+event)
	}
}
