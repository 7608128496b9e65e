package orchestration

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agentgauge/agentgauge/internal/models"
)

// EventType represents the type of progress event.
type EventType string

// EventType constants
const (
	EventBatchStart      EventType = "batch_start"
	EventBatchComplete   EventType = "batch_complete"
	EventTestStart       EventType = "test_start"
	EventTestCached      EventType = "test_cached"
	EventTestComplete    EventType = "test_complete"
	EventTestRetry       EventType = "test_retry"
	EventRunComplete     EventType = "run_complete"
	EventEvaluationStart EventType = "evaluation_start"
)

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	EventType  EventType
	TestID     string
	EntityName string
	Dimension  string
	Status     models.Status
	Attempt    int
	RunIndex   int
	TotalRuns  int
	TotalTests int
	DurationMs int64
	Details    map[string]any
}

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// ProgressSink is the injected, write-only logging/metrics surface. The
// orchestrator never reads back from it.
type ProgressSink interface {
	Log(msg string, level slog.Level)
	RecordMetric(calledAdapter bool, cacheHit bool)
}

// SlogSink is the default ProgressSink: messages go to a slog logger and
// metric ticks accumulate in counters.
type SlogSink struct {
	logger *slog.Logger

	mu           sync.Mutex
	adapterCalls int64
	cacheHits    int64
}

// NewSlogSink creates a sink writing to the given logger. A nil logger uses
// slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Log(msg string, level slog.Level) {
	s.logger.Log(context.Background(), level, msg)
}

func (s *SlogSink) RecordMetric(calledAdapter bool, cacheHit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if calledAdapter {
		s.adapterCalls++
	}
	if cacheHit {
		s.cacheHits++
	}
}

// AdapterCalls returns how many metric ticks reported an adapter call.
func (s *SlogSink) AdapterCalls() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapterCalls
}

// CacheHits returns how many metric ticks reported a cache hit.
func (s *SlogSink) CacheHits() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheHits
}
