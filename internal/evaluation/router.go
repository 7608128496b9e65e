package evaluation

import (
	"context"
	"fmt"

	"github.com/agentgauge/agentgauge/internal/models"
)

// Router dispatches scoring to a named evaluator based on the "evaluator" key
// in the test criteria, defaulting to keyword matching when absent.
type Router struct {
	evaluators map[string]Evaluator
	fallback   Evaluator
}

// NewRouter creates a router over the built-in evaluators.
func NewRouter() *Router {
	keyword := NewKeywordEvaluator()
	schema := NewSchemaEvaluator()
	return &Router{
		evaluators: map[string]Evaluator{
			keyword.Name(): keyword,
			schema.Name():  schema,
		},
		fallback: keyword,
	}
}

// Register adds or replaces a named evaluator.
func (r *Router) Register(ev Evaluator) {
	r.evaluators[ev.Name()] = ev
}

func (r *Router) Name() string { return "router" }

// Score dispatches to the evaluator named in the criteria.
func (r *Router) Score(ctx context.Context, output string, criteria map[string]any) (*models.Evaluation, error) {
	name, _ := criteria["evaluator"].(string)
	if name == "" {
		return r.fallback.Score(ctx, output, criteria)
	}

	ev, ok := r.evaluators[name]
	if !ok {
		return nil, fmt.Errorf("unknown evaluator %q", name)
	}
	return ev.Score(ctx, output, criteria)
}
