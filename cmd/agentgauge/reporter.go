package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentgauge/agentgauge/internal/models"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// FormatGitHubComment formats a BatchOutcome as a markdown comment for GitHub PRs
func FormatGitHubComment(outcome *models.BatchOutcome) string {
	var b strings.Builder

	digest := outcome.Digest
	duration := time.Duration(digest.DurationMs) * time.Millisecond

	b.WriteString("## 🧪 AgentGauge Results\n\n")

	statusIcon := "✅ Passed"
	if digest.Failed > 0 {
		statusIcon = "❌ Failed"
	}

	b.WriteString(fmt.Sprintf("**Status:** %s | **Batch:** %s | **Duration:** %s\n\n",
		statusIcon, outcome.BatchName, formatDuration(duration)))

	b.WriteString(fmt.Sprintf("- **Tests:** %d total, %d passed, %d failed\n",
		digest.TotalTests, digest.Passed, digest.Failed))
	b.WriteString(fmt.Sprintf("- **Success Rate:** %.1f%%\n", digest.SuccessRate*100))
	b.WriteString(fmt.Sprintf("- **Latency:** avg %dms (min %dms, max %dms)\n",
		digest.AvgLatencyMs, digest.MinLatencyMs, digest.MaxLatencyMs))
	if digest.CacheHits+digest.CacheMisses > 0 {
		b.WriteString(fmt.Sprintf("- **Cache:** %d hit(s), %d miss(es)\n",
			digest.CacheHits, digest.CacheMisses))
	}
	b.WriteString("\n")

	// Per-test breakdown table over visible units of work
	b.WriteString("### Test Results\n\n")
	b.WriteString("| Test | Entity | Dimension | Score | Status |\n")
	b.WriteString("|------|--------|-----------|-------|--------|\n")

	for _, rec := range outcome.Records {
		if !rec.VisibleInQueue {
			continue
		}

		statusIcon := "✅"
		if rec.Status != models.StatusCompleted {
			statusIcon = "❌"
		}

		score := "-"
		if rec.Evaluation != nil {
			score = fmt.Sprintf("%.2f", rec.Evaluation.Score)
		}

		name := rec.ID
		if rec.IsParent {
			name = fmt.Sprintf("%s (%d runs)", rec.ID, rec.TotalRuns)
		}

		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			name, rec.EntityName, rec.Dimension, score, statusIcon))
	}

	b.WriteString("\n")

	// Failure details
	if digest.Failed > 0 {
		b.WriteString("### Failed Test Details\n\n")
		for _, rec := range outcome.Records {
			if !rec.VisibleInQueue || rec.Status != models.StatusFailed {
				continue
			}
			b.WriteString(fmt.Sprintf("#### %s\n\n", rec.ID))
			if rec.ErrorMsg != "" {
				b.WriteString(fmt.Sprintf("- error: %s\n", rec.ErrorMsg))
			}
			if rec.Evaluation != nil && !rec.Evaluation.Passed {
				b.WriteString(fmt.Sprintf("- evaluation (%.2f): %s\n",
					rec.Evaluation.Score, rec.Evaluation.Reasoning))
			}
			if rec.IsParent {
				b.WriteString(fmt.Sprintf("- majority failed across %d runs\n", rec.TotalRuns))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Batch:** %s | **Started:** %s\n",
		outcome.BatchName, outcome.StartedAt.Format(time.RFC3339)))

	return b.String()
}
