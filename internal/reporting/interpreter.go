// Package reporting renders batch outcomes for humans and CI systems.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentgauge/agentgauge/internal/models"
)

// InterpretScore returns a plain-language label for a numeric score (0–1).
func InterpretScore(score float64) string {
	pct := score * 100
	switch {
	case pct > 90:
		return "Excellent (>90%)"
	case pct >= 70:
		return "Good (70-90%)"
	case pct >= 50:
		return "Needs Work (50-70%)"
	default:
		return "Poor (<50%)"
	}
}

// InterpretPassRate returns a human-readable explanation of a pass rate (0–1).
func InterpretPassRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All tests passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most tests passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the tests passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few tests passed (%.0f%%)", pct)
	}
}

// InterpretConsistency explains a multi-run group's agreement across samples.
func InterpretConsistency(completedRuns, totalRuns int) string {
	if totalRuns < 2 {
		return "Single run; consistency not sampled."
	}
	switch completedRuns {
	case totalRuns:
		return fmt.Sprintf("All %d runs agree.", totalRuns)
	case 0:
		return fmt.Sprintf("All %d runs failed.", totalRuns)
	default:
		return fmt.Sprintf("Results are inconsistent — %d of %d runs passed. Consider increasing runs or investigating non-determinism.", completedRuns, totalRuns)
	}
}

// FormatSummaryReport produces a full plain-language report from a BatchOutcome.
func FormatSummaryReport(outcome *models.BatchOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")

	b.WriteString(fmt.Sprintf("Pass Rate:     %s\n", InterpretPassRate(d.SuccessRate)))
	b.WriteString(fmt.Sprintf("Duration:      %v\n", duration))

	if d.TotalTests > 0 {
		b.WriteString(fmt.Sprintf("Tests:         %d passed, %d failed out of %d total\n",
			d.Passed, d.Failed, d.TotalTests))
	}
	if d.CacheHits+d.CacheMisses > 0 {
		b.WriteString(fmt.Sprintf("Cache:         %d of %d lookups reused a fresh result\n",
			d.CacheHits, d.CacheHits+d.CacheMisses))
	}

	var visible []*models.TestRecord
	for _, rec := range outcome.Records {
		if rec.VisibleInQueue {
			visible = append(visible, rec)
		}
	}

	if len(visible) > 0 {
		b.WriteString("\nPer-Test Interpretation:\n")
		for _, rec := range visible {
			icon := "✓"
			if rec.Status != models.StatusCompleted {
				icon = "✗"
			}
			b.WriteString(fmt.Sprintf("  %s %s [%s]: %s\n", icon, rec.ID, rec.Dimension, rec.Status))
			if rec.Evaluation != nil {
				b.WriteString(fmt.Sprintf("    Score: %.2f — %s\n", rec.Evaluation.Score, InterpretScore(rec.Evaluation.Score)))
			}
			if rec.IsParent {
				passed := countPassedChildren(outcome, rec.ID)
				b.WriteString(fmt.Sprintf("    %s\n", InterpretConsistency(passed, rec.TotalRuns)))
			}
		}
	}

	return b.String()
}

func countPassedChildren(outcome *models.BatchOutcome, parentID string) int {
	passed := 0
	for _, rec := range outcome.Records {
		if rec.ParentID == parentID && rec.Status == models.StatusCompleted {
			passed++
		}
	}
	return passed
}
