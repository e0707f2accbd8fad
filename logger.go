package vecindex

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with vecindex-specific helpers.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithMethod adds the index method to the logger.
func (l *Logger) WithMethod(m Method) *Logger {
	return &Logger{
		Logger: l.Logger.With("method", string(m)),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"id", id,
		)
	}
}

// LogBulkInsert logs a bulk insert.
func (l *Logger) LogBulkInsert(ctx context.Context, res BulkResult, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "bulk insert failed",
			"inserted", res.Inserted,
			"failed", len(res.Failures),
			"error", err,
		)
	case len(res.Failures) > 0:
		l.WarnContext(ctx, "bulk insert completed with failures",
			"inserted", res.Inserted,
			"failed", len(res.Failures),
		)
	default:
		l.InfoContext(ctx, "bulk insert completed",
			"inserted", res.Inserted,
		)
	}
}

// LogBuild logs a build.
func (l *Logger) LogBuild(ctx context.Context, vectors int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"vectors", vectors,
			"duration", duration,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, partial bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
			"partial", partial,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"id", id,
		)
	}
}

// LogVacuum logs a vacuum pass.
func (l *Logger) LogVacuum(ctx context.Context, report VacuumReport, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "vacuum failed",
			"reclaimed", report.Reclaimed,
			"error", err,
		)
	case report.Failed > 0 || len(report.Errors) > 0:
		l.WarnContext(ctx, "vacuum completed with failures",
			"reclaimed", report.Reclaimed,
			"repaired", report.Repaired,
			"failed", report.Failed,
			"error", report.Err(),
		)
	default:
		l.InfoContext(ctx, "vacuum completed",
			"reclaimed", report.Reclaimed,
			"repaired", report.Repaired,
		)
	}
}
