package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentgauge/agentgauge/internal/models"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2s", formatDuration(2*time.Second))
}

func TestFormatGitHubComment(t *testing.T) {
	outcome := &models.BatchOutcome{
		BatchName: "support-suite",
		StartedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		Digest: models.OutcomeDigest{
			TotalTests:   2,
			Passed:       1,
			Failed:       1,
			SuccessRate:  0.5,
			AvgLatencyMs: 120,
			MinLatencyMs: 80,
			MaxLatencyMs: 160,
			CacheHits:    1,
			CacheMisses:  1,
			DurationMs:   900,
		},
		Records: []*models.TestRecord{
			{
				ID:             "refund-basic",
				EntityName:     "support-bot",
				Dimension:      "correctness",
				Status:         models.StatusCompleted,
				VisibleInQueue: true,
				Evaluation:     &models.Evaluation{Passed: true, Score: 1.0, Reasoning: "all keyword checks passed"},
			},
			{
				ID:             "refund-sampled",
				EntityName:     "support-bot",
				Dimension:      "consistency",
				Status:         models.StatusFailed,
				VisibleInQueue: true,
				IsParent:       true,
				TotalRuns:      3,
			},
			{
				ID:             "refund-sampled-run1",
				EntityName:     "support-bot",
				Dimension:      "consistency",
				Status:         models.StatusFailed,
				ParentID:       "refund-sampled",
				VisibleInQueue: false,
			},
		},
	}

	comment := FormatGitHubComment(outcome)

	assert.Contains(t, comment, "❌ Failed")
	assert.Contains(t, comment, "support-suite")
	assert.Contains(t, comment, "| refund-basic | support-bot | correctness | 1.00 | ✅ |")
	assert.Contains(t, comment, "refund-sampled (3 runs)")
	assert.Contains(t, comment, "majority failed across 3 runs")
	// Children never appear as rows of their own.
	assert.NotContains(t, comment, "| refund-sampled-run1 |")
}

func TestFormatGitHubComment_AllPassed(t *testing.T) {
	outcome := &models.BatchOutcome{
		BatchName: "smoke",
		Digest: models.OutcomeDigest{
			TotalTests:  1,
			Passed:      1,
			SuccessRate: 1.0,
		},
		Records: []*models.TestRecord{
			{
				ID:             "t1",
				EntityName:     "bot",
				Dimension:      "correctness",
				Status:         models.StatusCompleted,
				VisibleInQueue: true,
			},
		},
	}

	comment := FormatGitHubComment(outcome)
	assert.Contains(t, comment, "✅ Passed")
	assert.NotContains(t, comment, "Failed Test Details")
}
