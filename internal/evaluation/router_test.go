package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_DefaultsToKeyword(t *testing.T) {
	r := NewRouter()

	result, err := r.Score(context.Background(), "refund complete", map[string]any{
		"must_contain": []string{"refund"},
	})
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestRouter_DispatchesByName(t *testing.T) {
	r := NewRouter()

	result, err := r.Score(context.Background(), `{"status": "ok"}`, map[string]any{
		"evaluator": "json_schema",
		"schema": map[string]any{
			"type":     "object",
			"required": []any{"status"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestRouter_UnknownEvaluator(t *testing.T) {
	r := NewRouter()

	_, err := r.Score(context.Background(), "output", map[string]any{
		"evaluator": "llm_judge",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm_judge")
}
