// Package execution defines the adapter boundary: the external capability
// that knows how to invoke a specific agent or team and return its output.
// Entity discovery and analysis happen upstream, outside this core.
package execution

import (
	"context"

	"github.com/agentgauge/agentgauge/internal/models"
)

// AgentAdapter invokes the entity under test. Implementations may fail or
// hang; the orchestrator races every call against its timeout budget.
type AgentAdapter interface {
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error)
}

// InvokeRequest carries one test invocation to the adapter.
type InvokeRequest struct {
	TestID string
	Entity models.Entity
	Input  map[string]any
}

// InvokeResponse is the adapter's result for one invocation.
type InvokeResponse struct {
	Output    string
	LatencyMs int64
}
