package execution

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockAdapter is a scriptable in-process adapter for tests and demo runs.
// The zero value echoes a canned response per entity.
type MockAdapter struct {
	mu          sync.Mutex
	invocations int

	// Delay is added to every invocation before responding.
	Delay time.Duration

	// Respond overrides the canned response when set. It is called outside
	// the adapter lock.
	Respond func(req *InvokeRequest) (*InvokeResponse, error)
}

// NewMockAdapter creates a mock adapter with canned responses.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// Invoke returns the scripted or canned response after the configured delay.
// It respects context cancellation while delaying, so a hung mock (large
// Delay) behaves like a hung agent.
func (m *MockAdapter) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	m.mu.Lock()
	m.invocations++
	delay := m.Delay
	respond := m.Respond
	m.mu.Unlock()

	start := time.Now()
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if respond != nil {
		return respond(req)
	}

	return &InvokeResponse{
		Output:    fmt.Sprintf("mock response from %s for test %s", req.Entity.ID(), req.TestID),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Invocations returns how many times Invoke was called.
func (m *MockAdapter) Invocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invocations
}
