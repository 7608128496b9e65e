package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgauge/agentgauge/internal/models"
)

// resetRunGlobals zeroes the package-level flag vars so prior tests don't leak.
func resetRunGlobals() {
	outputPath = ""
	junitPath = ""
	verbose = false
	workers = 0
	timeoutSec = 0
	disableCache = false
	interpret = false
	format = "default"
}

// createTestBatch writes a minimal batch YAML in a temp dir and returns its path.
func createTestBatch(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()

	path := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const passingBatchYAML = `name: smoke
config:
  max_concurrency: 2
  max_evaluator_calls: 1
  timeout_seconds: 10
tests:
  - id: echo-basic
    entity:
      name: support-bot
      kind: agent
    dimension: correctness
    input:
      prompt: "Handle refund for order 41"
    criteria:
      must_contain: ["mock"]
    scored: true
`

const failingBatchYAML = `name: smoke
config:
  max_concurrency: 2
  max_evaluator_calls: 1
  timeout_seconds: 10
tests:
  - id: echo-basic
    entity:
      name: support-bot
      kind: agent
    dimension: correctness
    input:
      prompt: "Handle refund for order 41"
    criteria:
      must_contain: ["a keyword the mock never emits"]
    scored: true
`

func TestRunCommand_RequiresExactlyOneArg(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", []string{}},
		{"two args", []string{"a.yaml", "b.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetRunGlobals()
			cmd := newRunCommand()
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			assert.Error(t, err, "expected error for args=%v", tt.args)
		})
	}
}

func TestRunCommand_MissingFile(t *testing.T) {
	resetRunGlobals()
	cmd := newRunCommand()
	cmd.SetArgs([]string{"/nonexistent/batch.yaml"})
	err := cmd.Execute()
	assert.Error(t, err)
}

func TestRunCommand_PassingBatch(t *testing.T) {
	resetRunGlobals()
	path := createTestBatch(t, passingBatchYAML)

	cmd := newRunCommand()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	assert.NoError(t, err)
}

func TestRunCommand_FailingBatchReturnsTestFailure(t *testing.T) {
	resetRunGlobals()
	path := createTestBatch(t, failingBatchYAML)

	cmd := newRunCommand()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()

	var testErr *TestFailureError
	require.Error(t, err)
	assert.True(t, errors.As(err, &testErr))
}

func TestRunCommand_SchemaErrorsRejectBatch(t *testing.T) {
	resetRunGlobals()
	path := createTestBatch(t, `name: bad
config:
  max_concurrency: 0
  max_evaluator_calls: 1
  timeout_seconds: 10
tests:
  - id: t1
    entity:
      name: bot
      kind: agent
    dimension: correctness
    input: {}
`)

	cmd := newRunCommand()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()

	require.Error(t, err)
	var testErr *TestFailureError
	assert.False(t, errors.As(err, &testErr), "schema errors are config errors, not test failures")
}

func TestRunCommand_WritesJUnitEvenOnFailure(t *testing.T) {
	resetRunGlobals()
	path := createTestBatch(t, failingBatchYAML)
	junitOut := filepath.Join(t.TempDir(), "junit.xml")

	cmd := newRunCommand()
	cmd.SetArgs([]string{path, "--junit", junitOut})
	err := cmd.Execute()

	var testErr *TestFailureError
	require.Error(t, err)
	require.True(t, errors.As(err, &testErr))

	data, readErr := os.ReadFile(junitOut)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "<testsuite")
	assert.Contains(t, string(data), "echo-basic")
}

func TestRunCommand_SavesOutput(t *testing.T) {
	resetRunGlobals()
	path := createTestBatch(t, passingBatchYAML)
	outPath := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{path, "--output", outPath})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var outcome models.BatchOutcome
	require.NoError(t, json.Unmarshal(data, &outcome))
	assert.Equal(t, "smoke", outcome.BatchName)
	assert.Equal(t, 1, outcome.Digest.TotalTests)
	assert.Equal(t, 1, outcome.Digest.Passed)
}
