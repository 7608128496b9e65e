package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentgauge/agentgauge/internal/models"
)

func TestInterpretScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, "Excellent (>90%)"},
		{0.90, "Good (70-90%)"},
		{0.70, "Good (70-90%)"},
		{0.60, "Needs Work (50-70%)"},
		{0.30, "Poor (<50%)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InterpretScore(tt.score), "score %.2f", tt.score)
	}
}

func TestInterpretPassRate(t *testing.T) {
	assert.Contains(t, InterpretPassRate(1.0), "All tests passed")
	assert.Contains(t, InterpretPassRate(0.85), "Most tests passed")
	assert.Contains(t, InterpretPassRate(0.5), "About half")
	assert.Contains(t, InterpretPassRate(0.2), "Few tests passed")
}

func TestInterpretConsistency(t *testing.T) {
	assert.Contains(t, InterpretConsistency(1, 1), "Single run")
	assert.Contains(t, InterpretConsistency(3, 3), "All 3 runs agree")
	assert.Contains(t, InterpretConsistency(0, 3), "All 3 runs failed")
	assert.Contains(t, InterpretConsistency(2, 3), "2 of 3 runs passed")
}

func TestFormatSummaryReport(t *testing.T) {
	outcome := &models.BatchOutcome{
		BatchName: "support-suite",
		Digest: models.OutcomeDigest{
			TotalTests:  2,
			Passed:      1,
			Failed:      1,
			SuccessRate: 0.5,
			CacheHits:   1,
			CacheMisses: 3,
			DurationMs:  1500,
		},
		Records: []*models.TestRecord{
			{
				ID:             "refund-basic",
				Dimension:      "correctness",
				Status:         models.StatusCompleted,
				VisibleInQueue: true,
				Evaluation:     &models.Evaluation{Passed: true, Score: 0.95},
			},
			{
				ID:             "refund-sampled",
				Dimension:      "consistency",
				Status:         models.StatusFailed,
				VisibleInQueue: true,
				IsParent:       true,
				TotalRuns:      3,
			},
			{ID: "refund-sampled-run1", ParentID: "refund-sampled", Status: models.StatusCompleted},
			{ID: "refund-sampled-run2", ParentID: "refund-sampled", Status: models.StatusFailed},
			{ID: "refund-sampled-run3", ParentID: "refund-sampled", Status: models.StatusFailed},
		},
	}

	report := FormatSummaryReport(outcome)

	assert.Contains(t, report, "About half the tests passed")
	assert.Contains(t, report, "1 passed, 1 failed out of 2 total")
	assert.Contains(t, report, "1 of 4 lookups")
	assert.Contains(t, report, "✓ refund-basic")
	assert.Contains(t, report, "Excellent (>90%)")
	assert.Contains(t, report, "✗ refund-sampled")
	assert.Contains(t, report, "1 of 3 runs passed")
	// Children are folded into their parent, not listed.
	assert.NotContains(t, report, "refund-sampled-run1")
}
