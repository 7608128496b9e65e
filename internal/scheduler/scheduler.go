// Package scheduler provides a generic bounded-concurrency executor for
// independent asynchronous units of work. Work waiting for a slot starts in
// strict arrival order, and the concurrency cap is never exceeded at any
// observable instant.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Task is one unit of work. Tasks are transient: the scheduler keeps no
// record of them beyond its counters.
type Task[T any] struct {
	ID   string
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Stats is a point-in-time snapshot of scheduler bookkeeping.
type Stats struct {
	Total     int
	Completed int
	Running   int
	Pending   int
}

// Listener receives scheduler notifications. Notifications are pure
// observability: they have no control-flow effect and are invoked outside the
// scheduler lock.
type Listener[T any] interface {
	OnTaskStart(task Task[T])
	OnTaskComplete(task Task[T], result T, elapsed time.Duration)
	OnTaskError(task Task[T], err error, elapsed time.Duration)
	OnProgress(completed, total, running int)
}

// Scheduler runs submitted tasks with at most limit executing concurrently.
// Multiple independent instances with independent limits coexist without
// interference.
type Scheduler[T any] struct {
	limit int

	mu        sync.Mutex
	waiting   []*waiter
	running   int
	total     int
	completed int

	listenerMu sync.Mutex
	listeners  []Listener[T]
}

// waiter represents a submission parked behind the concurrency cap. The
// dispatcher grants it a slot by setting granted and closing ready, both
// under the scheduler lock.
type waiter struct {
	ready   chan struct{}
	granted bool
}

// New creates a scheduler with the given concurrency limit.
func New[T any](limit int) (*Scheduler[T], error) {
	if limit < 1 {
		return nil, fmt.Errorf("scheduler limit must be at least 1, got %d", limit)
	}
	return &Scheduler[T]{limit: limit}, nil
}

// AddListener registers a notification listener.
func (s *Scheduler[T]) AddListener(l Listener[T]) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Stats returns current counters.
func (s *Scheduler[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Total:     s.total,
		Completed: s.completed,
		Running:   s.running,
		Pending:   len(s.waiting),
	}
}

// Submit runs the task, blocking the calling goroutine until a slot is free
// and the task has finished. The task's own result or failure is returned to
// this caller only; failures never affect other submissions.
//
// If ctx is cancelled while the submission is still queued, it is removed
// from the waiting list without ever consuming a slot.
func (s *Scheduler[T]) Submit(ctx context.Context, task Task[T]) (T, error) {
	var zero T

	s.mu.Lock()
	s.total++
	if s.running < s.limit {
		s.running++
		s.mu.Unlock()
	} else {
		w := &waiter{ready: make(chan struct{})}
		s.waiting = append(s.waiting, w)
		s.mu.Unlock()

		select {
		case <-w.ready:
		case <-ctx.Done():
			s.mu.Lock()
			if !w.granted {
				s.removeWaiterLocked(w)
				s.total--
				s.mu.Unlock()
				return zero, ctx.Err()
			}
			// Lost the race: a slot was handed over as we were
			// cancelling. Release it so the next waiter starts.
			s.running--
			s.total--
			s.dispatchLocked()
			s.mu.Unlock()
			return zero, ctx.Err()
		}
	}

	return s.execute(ctx, task)
}

// execute runs the task while holding a slot, then frees the slot and hands
// freed capacity to waiting submissions before notifying listeners.
func (s *Scheduler[T]) execute(ctx context.Context, task Task[T]) (T, error) {
	s.notifyStart(task)

	start := time.Now()
	result, err := task.Run(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.running--
	s.completed++
	s.dispatchLocked()
	completed, total, running := s.completed, s.total, s.running
	s.mu.Unlock()

	if err != nil {
		s.notifyError(task, err, elapsed)
	} else {
		s.notifyComplete(task, result, elapsed)
	}
	s.notifyProgress(completed, total, running)

	return result, err
}

// dispatchLocked starts as many waiting submissions as freed capacity allows,
// in FIFO order. Caller must hold s.mu.
func (s *Scheduler[T]) dispatchLocked() {
	for s.running < s.limit && len(s.waiting) > 0 {
		w := s.waiting[0]
		s.waiting = s.waiting[1:]
		s.running++
		w.granted = true
		close(w.ready)
	}
}

func (s *Scheduler[T]) removeWaiterLocked(target *waiter) {
	for i, w := range s.waiting {
		if w == target {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			return
		}
	}
}

func (s *Scheduler[T]) snapshotListeners() []Listener[T] {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	out := make([]Listener[T], len(s.listeners))
	copy(out, s.listeners)
	return out
}

func (s *Scheduler[T]) notifyStart(task Task[T]) {
	for _, l := range s.snapshotListeners() {
		l.OnTaskStart(task)
	}
}

func (s *Scheduler[T]) notifyComplete(task Task[T], result T, elapsed time.Duration) {
	for _, l := range s.snapshotListeners() {
		l.OnTaskComplete(task, result, elapsed)
	}
}

func (s *Scheduler[T]) notifyError(task Task[T], err error, elapsed time.Duration) {
	for _, l := range s.snapshotListeners() {
		l.OnTaskError(task, err, elapsed)
	}
}

func (s *Scheduler[T]) notifyProgress(completed, total, running int) {
	for _, l := range s.snapshotListeners() {
		l.OnProgress(completed, total, running)
	}
}
