package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_ValidBatch(t *testing.T) {
	path := createTestBatch(t, passingBatchYAML)

	cmd := newValidateCommand()
	cmd.SetArgs([]string{path})
	assert.NoError(t, cmd.Execute())
}

func TestValidateCommand_SchemaViolation(t *testing.T) {
	path := createTestBatch(t, `name: bad
config:
  max_concurrency: 0
  max_evaluator_calls: 1
  timeout_seconds: 10
tests:
  - id: t1
    entity:
      name: bot
      kind: robot
    dimension: correctness
    input: {}
`)

	cmd := newValidateCommand()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema error")
}

func TestValidateCommand_DuplicateIDs(t *testing.T) {
	path := createTestBatch(t, `name: dup
config:
  max_concurrency: 2
  max_evaluator_calls: 1
  timeout_seconds: 10
tests:
  - id: t1
    entity:
      name: bot
      kind: agent
    dimension: correctness
    input:
      prompt: "a"
  - id: t1
    entity:
      name: bot
      kind: agent
    dimension: correctness
    input:
      prompt: "b"
`)

	cmd := newValidateCommand()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateCommand_MissingFile(t *testing.T) {
	cmd := newValidateCommand()
	cmd.SetArgs([]string{"/nonexistent/batch.yaml"})
	assert.Error(t, cmd.Execute())
}
