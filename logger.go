package confecalc

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with confecalc-specific helpers.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithKernel adds a kernel name field to the logger.
func (l *Logger) WithKernel(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("kernel", name),
	}
}

// LogLaunch logs a kernel launch.
func (l *Logger) LogLaunch(ctx context.Context, name string, grid, block Dim3, sharedBytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "launch failed",
			"kernel", name,
			"grid", grid.Size(),
			"block", block.Size(),
			"shared_bytes", sharedBytes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "launch completed",
			"kernel", name,
			"grid", grid.Size(),
			"block", block.Size(),
			"shared_bytes", sharedBytes,
		)
	}
}

// LogOccupancy logs the outcome of a thread count search.
func (l *Logger) LogOccupancy(ctx context.Context, name string, threads, blocksPerSM int, err error) {
	if err != nil {
		l.WarnContext(ctx, "thread count search failed",
			"kernel", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "thread count selected",
			"kernel", name,
			"threads", threads,
			"blocks_per_sm", blocksPerSM,
		)
	}
}

// LogConfSpace logs a loaded or generated conformation space.
func (l *Logger) LogConfSpace(ctx context.Context, source string, numPos int, maxAtoms int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "conformation space unavailable",
			"source", source,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "conformation space ready",
			"source", source,
			"positions", numPos,
			"max_atoms", maxAtoms,
		)
	}
}
