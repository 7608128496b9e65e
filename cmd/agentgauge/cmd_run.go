package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentgauge/agentgauge/internal/evaluation"
	"github.com/agentgauge/agentgauge/internal/execution"
	"github.com/agentgauge/agentgauge/internal/models"
	"github.com/agentgauge/agentgauge/internal/orchestration"
	"github.com/agentgauge/agentgauge/internal/reporting"
	"github.com/agentgauge/agentgauge/internal/validation"
)

var (
	outputPath   string
	junitPath    string
	verbose      bool
	workers      int
	timeoutSec   int
	disableCache bool
	interpret    bool
	format       string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <batch.yaml>",
		Short: "Run a batch of agent tests",
		Long: `Run a batch of agent tests from a batch definition file.

The batch file defines the execution config (concurrency, timeouts, retry,
caching) and the tests to run. Tests with runs > 1 are sampled that many
times and resolved by majority vote.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for results")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Output JUnit XML file for CI systems")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with detailed progress")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent adapter calls (overrides batch config)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Per-test timeout in seconds (overrides batch config)")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable result caching")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&format, "format", "default", "Output format: default, github-comment")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	batchPath := args[0]

	// Structural validation first so authors get positional schema errors
	// instead of a zero-value config failing downstream.
	schemaErrs, err := validation.ValidateBatchFile(batchPath)
	if err != nil {
		return err
	}
	if len(schemaErrs) > 0 {
		for _, e := range schemaErrs {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("batch file %s failed schema validation", batchPath)
	}

	batch, err := models.LoadBatchSpec(batchPath)
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}

	// CLI flags override batch config
	if workers > 0 {
		batch.Config.MaxConcurrency = workers
	}
	if timeoutSec > 0 {
		batch.Config.TimeoutSec = timeoutSec
	}
	if disableCache {
		batch.Config.CacheTTLSec = 0
	}

	adapter := execution.NewMockAdapter()

	orch, err := orchestration.New(
		orchestration.ConfigFromBatch(batch.Config),
		adapter,
		evaluation.NewRouter(),
	)
	if err != nil {
		return err
	}

	if verbose {
		orch.OnProgress(verboseProgressListener)
	} else {
		orch.OnProgress(simpleProgressListener)
	}

	fmt.Printf("Running batch: %s\n", batch.Name)
	fmt.Printf("Tests: %d\n", len(batch.Tests))
	fmt.Printf("Concurrency: %d\n", batch.Config.MaxConcurrency)
	if batch.Config.CacheTTLSec > 0 {
		fmt.Printf("Cache TTL: %ds\n", batch.Config.CacheTTLSec)
	}
	fmt.Println()

	outcome, err := orch.RunBatch(context.Background(), batch.Name, batch.ExpandSpecs())
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	switch format {
	case "github-comment":
		fmt.Print(FormatGitHubComment(outcome))
	case "default":
		printSummary(outcome)

		if interpret {
			fmt.Println()
			fmt.Print(reporting.FormatSummaryReport(outcome))
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: default, github-comment)", format)
	}

	if outputPath != "" {
		if err := saveOutcome(outcome, outputPath); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", outputPath)
	}

	if junitPath != "" {
		if err := reporting.WriteJUnitXML(outcome, junitPath); err != nil {
			return fmt.Errorf("failed to write JUnit XML: %w", err)
		}
		fmt.Printf("JUnit results saved to: %s\n", junitPath)
	}

	if outcome.Digest.Failed > 0 {
		return &TestFailureError{
			Message: fmt.Sprintf("batch completed with %d failed test(s)", outcome.Digest.Failed),
		}
	}

	return nil
}

func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventBatchStart:
		fmt.Printf("Starting batch with %d test(s)...\n\n", event.TotalTests)
	case orchestration.EventTestStart:
		fmt.Printf("Running test: %s\n", event.TestID)
	case orchestration.EventTestCached:
		fmt.Printf("Test %s [cached]\n", event.TestID)
	case orchestration.EventTestRetry:
		fmt.Printf("  Retrying %s (attempt %d)\n", event.TestID, event.Attempt)
	case orchestration.EventEvaluationStart:
		fmt.Printf("  Evaluating %s...\n", event.TestID)
	case orchestration.EventRunComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("  Run %d: %s (%v)\n", event.RunIndex, event.Status, duration)
	case orchestration.EventTestComplete:
		fmt.Printf("Test %s: %s\n\n", event.TestID, event.Status)
	case orchestration.EventBatchComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Batch completed in %v\n\n", duration)
	}
}

func simpleProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventTestCached:
		fmt.Printf("✓ %s [cached]\n", event.TestID)
	case orchestration.EventTestComplete:
		status := "✓"
		if event.Status != models.StatusCompleted {
			status = "✗"
		}
		fmt.Printf("%s %s\n", status, event.TestID)
	}
}

func printSummary(outcome *models.BatchOutcome) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" BATCH RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	digest := outcome.Digest

	fmt.Printf("Total Tests:    %d\n", digest.TotalTests)
	fmt.Printf("Passed:         %d\n", digest.Passed)
	fmt.Printf("Failed:         %d\n", digest.Failed)
	fmt.Printf("Success Rate:   %.1f%%\n", digest.SuccessRate*100)
	fmt.Printf("Latency:        avg=%dms min=%dms max=%dms\n",
		digest.AvgLatencyMs, digest.MinLatencyMs, digest.MaxLatencyMs)
	if digest.CacheHits+digest.CacheMisses > 0 {
		fmt.Printf("Cache:          %d hit(s), %d miss(es)\n", digest.CacheHits, digest.CacheMisses)
	}
	if digest.EvaluatorCalls > 0 {
		fmt.Printf("Evaluator:      %d call(s), %.2f cost unit(s)\n", digest.EvaluatorCalls, digest.CostUnits)
	}

	duration := time.Duration(digest.DurationMs) * time.Millisecond
	fmt.Printf("Duration:       %v\n", duration)
	fmt.Println()

	// Show failed tests
	failed := outcome.FailedRecords()
	if len(failed) > 0 {
		fmt.Println("Failed Tests:")
		for _, rec := range failed {
			if !rec.VisibleInQueue {
				continue
			}
			fmt.Printf("  - %s [%s/%s]\n", rec.ID, rec.EntityName, rec.Dimension)
			if rec.ErrorMsg != "" {
				fmt.Printf("    • %s\n", rec.ErrorMsg)
			}
			if rec.Evaluation != nil && !rec.Evaluation.Passed {
				fmt.Printf("    • %s\n", rec.Evaluation.Reasoning)
			}
			if rec.IsParent {
				fmt.Printf("    • majority failed across %d runs\n", rec.TotalRuns)
			}
		}
		fmt.Println()
	}
}

func saveOutcome(outcome *models.BatchOutcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
