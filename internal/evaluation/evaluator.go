// Package evaluation defines the evaluator boundary: the external capability
// that scores an adapter's output against expected criteria. Evaluator calls
// are only ever submitted through the orchestrator's bounded evaluator pool.
package evaluation

import (
	"context"

	"github.com/agentgauge/agentgauge/internal/models"
)

// Evaluator scores an output against the criteria attached to a test
// specification. Criteria are opaque maps; each implementation decodes the
// parameters it understands.
type Evaluator interface {
	Name() string
	Score(ctx context.Context, output string, criteria map[string]any) (*models.Evaluation, error)
}
