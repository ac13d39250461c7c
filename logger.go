package vecshard

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/hupe1980/vecshard/operation"
)

// Logger wraps slog.Logger with shard-specific helpers.
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
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// With returns a Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogUpdate logs an update. Durability failures are errors; application
// failures are warnings because the operation is already in the WAL.
func (l *Logger) LogUpdate(ctx context.Context, opID uint64, op operation.Operation, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "update applied",
			"op_id", opID,
			"kind", op.Kind().String(),
			"operation", op.Name(),
		)
	case errors.Is(err, ErrDurability):
		l.ErrorContext(ctx, "update rejected: wal write failed",
			"kind", op.Kind().String(),
			"operation", op.Name(),
			"error", err,
		)
	default:
		l.WarnContext(ctx, "update admitted but not applied",
			"op_id", opID,
			"kind", op.Kind().String(),
			"operation", op.Name(),
			"error", err,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, limit, offset, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"limit", limit,
			"offset", offset,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"limit", limit,
		"offset", offset,
		"results", results,
	)
}

// LogRecovery logs a WAL replay.
func (l *Logger) LogRecovery(ctx context.Context, replayed, failed int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "WAL recovery failed",
			"entries_replayed", replayed,
			"error", err,
		)
	case failed > 0:
		l.WarnContext(ctx, "WAL recovery completed with failures",
			"entries_replayed", replayed,
			"failed", failed,
		)
	default:
		l.InfoContext(ctx, "WAL recovery completed",
			"entries_replayed", replayed,
		)
	}
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, name string, entries uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot saved",
		"name", name,
		"entries", entries,
	)
}
