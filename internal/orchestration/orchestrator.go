// Package orchestration drives a batch of test specifications to completion
// against an injected agent adapter and evaluator, applying concurrency,
// timeout, retry and caching policy. The test state registry is the only
// externally observable effect.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentgauge/agentgauge/internal/cache"
	"github.com/agentgauge/agentgauge/internal/evaluation"
	"github.com/agentgauge/agentgauge/internal/execution"
	"github.com/agentgauge/agentgauge/internal/models"
	"github.com/agentgauge/agentgauge/internal/registry"
	"github.com/agentgauge/agentgauge/internal/scheduler"
)

// Orchestrator composes the scheduler pools, registry and cache with the
// injected adapter and evaluator capabilities.
type Orchestrator struct {
	cfg       Config
	adapter   execution.AgentAdapter
	evaluator evaluation.Evaluator

	registry *registry.Registry
	cache    *cache.Cache
	sink     ProgressSink

	adapterPool *scheduler.Scheduler[*execution.InvokeResponse]
	evalPool    *scheduler.Scheduler[*models.Evaluation]

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache injects a result cache. Overrides the cache the orchestrator
// would otherwise build from Config.CacheTTL.
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// WithSink injects the write-only progress sink.
func WithSink(s ProgressSink) Option {
	return func(o *Orchestrator) {
		o.sink = s
	}
}

// New creates an orchestrator for one evaluation run. Distinct runs get
// distinct orchestrators; nothing is shared through package state.
func New(cfg Config, adapter execution.AgentAdapter, evaluator evaluation.Evaluator, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	if adapter == nil {
		return nil, errors.New("agent adapter is required")
	}

	adapterPool, err := scheduler.New[*execution.InvokeResponse](cfg.MaxConcurrency)
	if err != nil {
		return nil, err
	}
	evalPool, err := scheduler.New[*models.Evaluation](cfg.MaxEvaluatorCalls)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:         cfg,
		adapter:     adapter,
		evaluator:   evaluator,
		registry:    registry.New(),
		adapterPool: adapterPool,
		evalPool:    evalPool,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.cache == nil && cfg.CacheTTL > 0 {
		o.cache = cache.New(cfg.CacheTTL)
	}
	if o.sink == nil {
		o.sink = NewSlogSink(slog.Default())
	}

	adapterPool.AddListener(scheduler.NewLogListener[*execution.InvokeResponse](slog.Default(), "adapter"))
	evalPool.AddListener(scheduler.NewLogListener[*models.Evaluation](slog.Default(), "evaluator"))

	return o, nil
}

// Registry exposes the test state registry, the single source of truth all
// consumers query.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Cache exposes the result cache, if caching is enabled.
func (o *Orchestrator) Cache() *cache.Cache {
	return o.cache
}

// OnProgress registers a progress listener.
func (o *Orchestrator) OnProgress(listener ProgressListener) {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.listeners = append(o.listeners, listener)
}

func (o *Orchestrator) notifyProgress(event ProgressEvent) {
	o.progressMu.Lock()
	listeners := make([]ProgressListener, len(o.listeners))
	copy(listeners, o.listeners)
	o.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// RunBatch pre-registers a record per specification, drives every
// non-parent spec to a terminal status, resolves multi-run parents by
// majority, and returns the aggregate outcome. Per-test failures never abort
// the batch; only a registration contract violation returns an error.
func (o *Orchestrator) RunBatch(ctx context.Context, batchName string, specs []*models.TestSpec) (*models.BatchOutcome, error) {
	started := time.Now()

	// Pre-registration: progress views must be accurate before any
	// execution begins, including for not-yet-started work.
	for _, spec := range specs {
		params := registry.CreateParams{
			ID:         spec.ID,
			EntityName: spec.Entity.Name,
			Dimension:  spec.Dimension,
			InputIndex: spec.InputIndex,
			Input:      spec.Input,
			RunIndex:   spec.RunIndex,
			ParentID:   spec.ParentID,
		}
		if spec.IsParent() {
			params.IsParent = true
			params.TotalRuns = spec.Runs
		}
		if _, err := o.registry.Create(params); err != nil {
			return nil, err
		}
	}

	visible := o.registry.VisibleCounts()
	totalTests := visible.Queued
	o.notifyProgress(ProgressEvent{EventType: EventBatchStart, TotalTests: totalTests})
	o.sink.Log(fmt.Sprintf("batch %q started: %d tests, %d records", batchName, totalTests, len(specs)), slog.LevelInfo)

	var g errgroup.Group
	for _, spec := range specs {
		if spec.IsParent() {
			continue
		}
		spec := spec
		g.Go(func() error {
			o.runSpec(ctx, spec)
			return nil
		})
	}
	// Workers never return errors; failures are isolated per record.
	_ = g.Wait()

	outcome := o.buildOutcome(batchName, started)
	o.notifyProgress(ProgressEvent{
		EventType:  EventBatchComplete,
		TotalTests: outcome.Digest.TotalTests,
		DurationMs: outcome.Digest.DurationMs,
	})
	o.sink.Log(fmt.Sprintf("batch %q finished: %d/%d passed", batchName, outcome.Digest.Passed, outcome.Digest.TotalTests), slog.LevelInfo)

	return outcome, nil
}

// runSpec drives one specification to a terminal status.
func (o *Orchestrator) runSpec(ctx context.Context, spec *models.TestSpec) {
	o.notifyProgress(ProgressEvent{
		EventType:  EventTestStart,
		TestID:     spec.ID,
		EntityName: spec.Entity.Name,
		Dimension:  spec.Dimension,
		RunIndex:   spec.RunIndex,
	})

	if o.cache != nil {
		if entry, ok := o.cache.Get(spec.Entity.ID(), spec.Input); ok {
			completed := models.StatusCompleted
			o.applyUpdate(spec.ID, registry.Update{
				Status:    &completed,
				Result:    &entry.Output,
				LatencyMs: &entry.LatencyMs,
			})
			o.sink.RecordMetric(false, true)
			o.notifyProgress(ProgressEvent{
				EventType:  EventTestCached,
				TestID:     spec.ID,
				EntityName: spec.Entity.Name,
				Status:     completed,
			})
			o.finish(spec)
			return
		}
	}

	resp, err := o.invokeWithRetry(ctx, spec)
	o.sink.RecordMetric(true, false)
	if err != nil {
		o.failRecord(spec, err)
		o.finish(spec)
		return
	}

	if o.cache != nil {
		if cerr := o.cache.Set(spec.Entity.ID(), spec.Input, resp.Output, resp.LatencyMs); cerr != nil {
			o.sink.Log(fmt.Sprintf("cache write failed for %s: %v", spec.ID, cerr), slog.LevelWarn)
		}
	}

	if spec.Scored {
		o.evaluate(ctx, spec, resp)
	} else {
		completed := models.StatusCompleted
		o.applyUpdate(spec.ID, registry.Update{
			Status:    &completed,
			Result:    &resp.Output,
			LatencyMs: &resp.LatencyMs,
		})
	}

	o.finish(spec)
}

// invokeWithRetry acquires an adapter slot and races the invocation against
// the timeout budget. Transient failures (timeout, adapter I/O) retry with a
// fixed delay; each attempt re-acquires a slot so the delay never holds
// capacity. Validation failures surface immediately.
func (o *Orchestrator) invokeWithRetry(ctx context.Context, spec *models.TestSpec) (*execution.InvokeResponse, error) {
	attempts := 1
	if o.cfg.RetryEnabled {
		attempts += o.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := o.adapterPool.Submit(ctx, scheduler.Task[*execution.InvokeResponse]{
			ID:   spec.ID,
			Name: "invoke " + spec.Entity.ID(),
			Run: func(taskCtx context.Context) (*execution.InvokeResponse, error) {
				running := models.StatusRunning
				o.applyUpdate(spec.ID, registry.Update{Status: &running})
				return o.invokeOnce(taskCtx, spec)
			},
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !models.IsRetryable(err) || attempt == attempts {
			break
		}

		o.notifyProgress(ProgressEvent{
			EventType:  EventTestRetry,
			TestID:     spec.ID,
			EntityName: spec.Entity.Name,
			Attempt:    attempt,
			Details:    map[string]any{"error": err.Error()},
		})
		o.sink.Log(fmt.Sprintf("retrying %s after attempt %d/%d: %v", spec.ID, attempt, attempts, err), slog.LevelWarn)

		select {
		case <-time.After(o.cfg.RetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// invokeOnce races one adapter call against the timeout budget. On expiry the
// call's eventual outcome is disregarded, even if it later resolves
// out-of-band; the buffered channel lets the stray goroutine finish.
func (o *Orchestrator) invokeOnce(ctx context.Context, spec *models.TestSpec) (*execution.InvokeResponse, error) {
	type result struct {
		resp *execution.InvokeResponse
		err  error
	}
	ch := make(chan result, 1)

	start := time.Now()
	go func() {
		resp, err := o.adapter.Invoke(ctx, &execution.InvokeRequest{
			TestID: spec.ID,
			Entity: spec.Entity,
			Input:  spec.Input,
		})
		ch <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(o.cfg.Timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, &models.AdapterError{TestID: spec.ID, Err: res.err}
		}
		if res.resp.LatencyMs == 0 {
			res.resp.LatencyMs = time.Since(start).Milliseconds()
		}
		return res.resp, nil
	case <-timer.C:
		return nil, &models.TimeoutError{TestID: spec.ID, Timeout: o.cfg.Timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// evaluate submits a scoring task through the bounded evaluator pool and
// applies the verdict. Evaluation failure downgrades the record to failed
// while preserving the raw adapter output.
func (o *Orchestrator) evaluate(ctx context.Context, spec *models.TestSpec, resp *execution.InvokeResponse) {
	// Record the adapter output up front. The evaluating transition waits
	// until a pool slot is held, so records queued behind the pool never
	// inflate the evaluating view past its cap.
	o.applyUpdate(spec.ID, registry.Update{
		Result:    &resp.Output,
		LatencyMs: &resp.LatencyMs,
	})

	if o.evaluator == nil {
		o.failRecord(spec, &models.EvaluationError{TestID: spec.ID, Err: errors.New("no evaluator configured")})
		return
	}

	eval, err := o.evalPool.Submit(ctx, scheduler.Task[*models.Evaluation]{
		ID:   spec.ID,
		Name: "score " + spec.ID,
		Run: func(taskCtx context.Context) (*models.Evaluation, error) {
			evaluating := models.StatusEvaluating
			o.applyUpdate(spec.ID, registry.Update{Status: &evaluating})
			o.notifyProgress(ProgressEvent{
				EventType:  EventEvaluationStart,
				TestID:     spec.ID,
				EntityName: spec.Entity.Name,
				Status:     evaluating,
			})
			return o.evaluator.Score(taskCtx, resp.Output, spec.Criteria)
		},
	})
	if err != nil {
		o.failRecord(spec, &models.EvaluationError{TestID: spec.ID, Err: err})
		return
	}
	o.registry.RecordEvaluatorCall(eval.CostUnits)

	status := models.StatusCompleted
	if !eval.Passed {
		status = models.StatusFailed
	}
	o.applyUpdate(spec.ID, registry.Update{Status: &status, Evaluation: eval})
}

// failRecord marks the record failed with its error cause. The result field
// is left untouched so a prior adapter output survives evaluator failures.
func (o *Orchestrator) failRecord(spec *models.TestSpec, cause error) {
	failed := models.StatusFailed
	msg := cause.Error()
	o.applyUpdate(spec.ID, registry.Update{Status: &failed, ErrorMsg: &msg})
	o.sink.Log(fmt.Sprintf("test %s failed: %v", spec.ID, cause), slog.LevelError)
}

// applyUpdate funnels registry writes; a rejected write here is a bug in the
// orchestrator's own sequencing, so it is logged loudly rather than dropped.
func (o *Orchestrator) applyUpdate(id string, upd registry.Update) {
	if _, err := o.registry.Update(id, upd); err != nil {
		o.sink.Log(fmt.Sprintf("registry update rejected for %s: %v", id, err), slog.LevelError)
	}
}

// finish emits the terminal progress event for a spec and, for multi-run
// children, rolls group accounting forward and resolves the parent once all
// siblings are terminal.
func (o *Orchestrator) finish(spec *models.TestSpec) {
	rec, err := o.registry.Get(spec.ID)
	if err != nil {
		return
	}

	if !spec.IsChild() {
		o.notifyProgress(ProgressEvent{
			EventType:  EventTestComplete,
			TestID:     spec.ID,
			EntityName: spec.Entity.Name,
			Status:     rec.Status,
			DurationMs: rec.LatencyMs,
		})
		return
	}

	o.notifyProgress(ProgressEvent{
		EventType:  EventRunComplete,
		TestID:     spec.ID,
		EntityName: spec.Entity.Name,
		Status:     rec.Status,
		RunIndex:   spec.RunIndex,
		DurationMs: rec.LatencyMs,
	})

	if _, err := o.registry.ChildFinished(spec.ParentID); err != nil {
		o.sink.Log(fmt.Sprintf("run accounting failed for %s: %v", spec.ParentID, err), slog.LevelError)
	}

	resolved, err := o.registry.ResolveParent(spec.ParentID)
	if err != nil {
		o.sink.Log(fmt.Sprintf("parent resolution failed for %s: %v", spec.ParentID, err), slog.LevelError)
		return
	}
	if resolved {
		parent, err := o.registry.Get(spec.ParentID)
		if err != nil {
			return
		}
		o.notifyProgress(ProgressEvent{
			EventType:  EventTestComplete,
			TestID:     parent.ID,
			EntityName: parent.EntityName,
			Status:     parent.Status,
			TotalRuns:  parent.TotalRuns,
			DurationMs: parent.LatencyMs,
		})
	}
}

// buildOutcome derives the batch aggregate from the registry once every
// record is terminal.
func (o *Orchestrator) buildOutcome(batchName string, started time.Time) *models.BatchOutcome {
	records := o.registry.All()
	metrics := o.registry.Metrics()

	digest := models.OutcomeDigest{
		EvaluatorCalls: metrics.EvaluatorCalls,
		CostUnits:      metrics.CostUnits,
		DurationMs:     time.Since(started).Milliseconds(),
	}

	var totalLatency int64
	var latencyCount int64
	for _, rec := range records {
		if !rec.VisibleInQueue {
			continue
		}
		digest.TotalTests++
		switch rec.Status {
		case models.StatusCompleted:
			digest.Passed++
		case models.StatusFailed:
			digest.Failed++
		}
		if rec.Status.IsTerminal() {
			totalLatency += rec.LatencyMs
			latencyCount++
			if digest.MinLatencyMs == 0 || rec.LatencyMs < digest.MinLatencyMs {
				digest.MinLatencyMs = rec.LatencyMs
			}
			if rec.LatencyMs > digest.MaxLatencyMs {
				digest.MaxLatencyMs = rec.LatencyMs
			}
		}
	}
	if digest.TotalTests > 0 {
		digest.SuccessRate = float64(digest.Passed) / float64(digest.TotalTests)
	}
	if latencyCount > 0 {
		digest.AvgLatencyMs = totalLatency / latencyCount
	}

	if o.cache != nil {
		stats := o.cache.Stats()
		digest.CacheHits = stats.Hits
		digest.CacheMisses = stats.Misses
	}

	return &models.BatchOutcome{
		BatchName: batchName,
		StartedAt: metrics.StartedAt,
		Digest:    digest,
		Records:   records,
	}
}
