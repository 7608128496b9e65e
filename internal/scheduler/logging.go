package scheduler

import (
	"log/slog"
	"time"
)

// LogListener traces scheduler activity at debug level.
type LogListener[T any] struct {
	Logger *slog.Logger
	Pool   string
}

// NewLogListener creates a listener that logs to the given logger, tagging
// every entry with the pool name.
func NewLogListener[T any](logger *slog.Logger, pool string) *LogListener[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogListener[T]{Logger: logger, Pool: pool}
}

func (l *LogListener[T]) OnTaskStart(task Task[T]) {
	l.Logger.Debug("task started", "pool", l.Pool, "id", task.ID, "name", task.Name)
}

func (l *LogListener[T]) OnTaskComplete(task Task[T], _ T, elapsed time.Duration) {
	l.Logger.Debug("task completed", "pool", l.Pool, "id", task.ID, "elapsed", elapsed)
}

func (l *LogListener[T]) OnTaskError(task Task[T], err error, elapsed time.Duration) {
	l.Logger.Debug("task failed", "pool", l.Pool, "id", task.ID, "elapsed", elapsed, "error", err)
}

func (l *LogListener[T]) OnProgress(completed, total, running int) {
	l.Logger.Debug("pool progress", "pool", l.Pool, "completed", completed, "total", total, "running", running)
}
