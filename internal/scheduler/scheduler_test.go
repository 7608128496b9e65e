package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLimit(t *testing.T) {
	_, err := New[int](0)
	assert.Error(t, err)

	_, err = New[int](-3)
	assert.Error(t, err)

	s, err := New[int](1)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSubmit_ReturnsResult(t *testing.T) {
	s, err := New[string](2)
	require.NoError(t, err)

	result, err := s.Submit(context.Background(), Task[string]{
		ID:   "t1",
		Name: "simple",
		Run: func(ctx context.Context) (string, error) {
			return "done", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Running)
	assert.Equal(t, 0, stats.Pending)
}

func TestSubmit_FailureIsIsolated(t *testing.T) {
	s, err := New[int](2)
	require.NoError(t, err)

	boom := errors.New("boom")

	_, err = s.Submit(context.Background(), Task[int]{
		ID: "bad",
		Run: func(ctx context.Context) (int, error) {
			return 0, boom
		},
	})
	assert.ErrorIs(t, err, boom)

	// The failure must not poison the scheduler for later work.
	result, err := s.Submit(context.Background(), Task[int]{
		ID: "good",
		Run: func(ctx context.Context) (int, error) {
			return 42, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Completed)
}

func TestSubmit_CapNeverExceeded(t *testing.T) {
	const limit = 3
	const tasks = 20

	s, err := New[int](limit)
	require.NoError(t, err)

	var current, max atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = s.Submit(context.Background(), Task[int]{
				ID: fmt.Sprintf("task-%d", n),
				Run: func(ctx context.Context) (int, error) {
					cur := current.Add(1)
					for {
						prev := max.Load()
						if cur <= prev || max.CompareAndSwap(prev, cur) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					current.Add(-1)
					return n, nil
				},
			})
		}(i)
	}

	wg.Wait()

	assert.LessOrEqual(t, max.Load(), int32(limit), "observed concurrency must never exceed the limit")
	stats := s.Stats()
	assert.Equal(t, tasks, stats.Total)
	assert.Equal(t, tasks, stats.Completed)
	assert.Equal(t, 0, stats.Running)
	assert.Equal(t, 0, stats.Pending)
}

// Five tasks with limit 2: at submission time exactly 2 run and 3 wait; as
// each running task finishes, the next pending task starts in arrival order,
// and running never exceeds 2 until all five are terminal.
func TestSubmit_FIFOHandoff(t *testing.T) {
	s, err := New[int](2)
	require.NoError(t, err)

	const tasks = 5

	release := make([]chan struct{}, tasks)
	for i := range release {
		release[i] = make(chan struct{})
	}

	var startOrder []int
	var startMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Submit(context.Background(), Task[int]{
				ID: fmt.Sprintf("task-%d", i),
				Run: func(ctx context.Context) (int, error) {
					startMu.Lock()
					startOrder = append(startOrder, i)
					startMu.Unlock()
					<-release[i]
					return i, nil
				},
			})
		}()

		// Wait for this submission to be accounted for before issuing
		// the next one, so arrival order is deterministic.
		require.Eventually(t, func() bool {
			return s.Stats().Total == i+1
		}, time.Second, time.Millisecond)
	}

	require.Eventually(t, func() bool {
		st := s.Stats()
		return st.Running == 2 && st.Pending == 3
	}, time.Second, time.Millisecond)

	st := s.Stats()
	assert.Equal(t, 2, st.Running)
	assert.Equal(t, 3, st.Pending)

	// Finish the first two; tasks 2 then 3 must start next, in order.
	close(release[0])
	require.Eventually(t, func() bool {
		startMu.Lock()
		defer startMu.Unlock()
		return len(startOrder) == 3
	}, time.Second, time.Millisecond)

	close(release[1])
	require.Eventually(t, func() bool {
		startMu.Lock()
		defer startMu.Unlock()
		return len(startOrder) == 4
	}, time.Second, time.Millisecond)

	assert.LessOrEqual(t, s.Stats().Running, 2)

	for i := 2; i < tasks; i++ {
		close(release[i])
	}
	wg.Wait()

	startMu.Lock()
	defer startMu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, startOrder, "waiting tasks must start in arrival order")

	final := s.Stats()
	assert.Equal(t, tasks, final.Completed)
	assert.Equal(t, 0, final.Running)
	assert.Equal(t, 0, final.Pending)
}

func TestSubmit_CancelWhileQueued(t *testing.T) {
	s, err := New[int](1)
	require.NoError(t, err)

	blocker := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Submit(context.Background(), Task[int]{
			ID: "holder",
			Run: func(ctx context.Context) (int, error) {
				<-blocker
				return 0, nil
			},
		})
	}()

	require.Eventually(t, func() bool {
		return s.Stats().Running == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	queued := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, Task[int]{
			ID: "queued",
			Run: func(ctx context.Context) (int, error) {
				t.Error("queued task must not run after cancellation")
				return 0, nil
			},
		})
		queued <- err
	}()

	require.Eventually(t, func() bool {
		return s.Stats().Pending == 1
	}, time.Second, time.Millisecond)

	cancel()
	err = <-queued
	assert.ErrorIs(t, err, context.Canceled)

	// The cancelled waiter must not have consumed a slot or left bookkeeping behind.
	st := s.Stats()
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 1, st.Total)

	close(blocker)
	wg.Wait()
}

func TestTwoInstancesAreIndependent(t *testing.T) {
	a, err := New[int](1)
	require.NoError(t, err)
	b, err := New[int](2)
	require.NoError(t, err)

	hold := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = a.Submit(context.Background(), Task[int]{
			ID: "a-hold",
			Run: func(ctx context.Context) (int, error) {
				<-hold
				return 0, nil
			},
		})
	}()

	require.Eventually(t, func() bool {
		return a.Stats().Running == 1
	}, time.Second, time.Millisecond)

	// Pool b must be unaffected by pool a's saturation.
	result, err := b.Submit(context.Background(), Task[int]{
		ID: "b-task",
		Run: func(ctx context.Context) (int, error) {
			return 7, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result)

	close(hold)
	wg.Wait()
}

type recordingListener struct {
	mu        sync.Mutex
	started   []string
	completed []string
	errored   []string
	progress  int
}

func (r *recordingListener) OnTaskStart(task Task[int]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, task.ID)
}

func (r *recordingListener) OnTaskComplete(task Task[int], _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, task.ID)
}

func (r *recordingListener) OnTaskError(task Task[int], _ error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errored = append(r.errored, task.ID)
}

func (r *recordingListener) OnProgress(completed, total, running int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress++
}

func TestListenerNotifications(t *testing.T) {
	s, err := New[int](2)
	require.NoError(t, err)

	rec := &recordingListener{}
	s.AddListener(rec)

	_, err = s.Submit(context.Background(), Task[int]{
		ID:  "ok",
		Run: func(ctx context.Context) (int, error) { return 1, nil },
	})
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), Task[int]{
		ID:  "bad",
		Run: func(ctx context.Context) (int, error) { return 0, errors.New("nope") },
	})
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"ok", "bad"}, rec.started)
	assert.Equal(t, []string{"ok"}, rec.completed)
	assert.Equal(t, []string{"bad"}, rec.errored)
	assert.Equal(t, 2, rec.progress)
}
