package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EntityKind distinguishes the unit under test.
type EntityKind string

const (
	EntityKindAgent EntityKind = "agent"
	EntityKindTeam  EntityKind = "team"
)

// Entity identifies the agent or team a test runs against.
type Entity struct {
	Name string     `yaml:"name" json:"name"`
	Kind EntityKind `yaml:"kind" json:"kind"`
}

// ID returns the entity's cache/registry identity.
func (e Entity) ID() string {
	return string(e.Kind) + ":" + e.Name
}

// TestSpec is a single generated test specification consumed by the
// orchestrator. Specs are produced upstream by dimension-driven generation;
// the orchestrator never creates or rewrites them.
type TestSpec struct {
	ID         string         `yaml:"id" json:"id"`
	Entity     Entity         `yaml:"entity" json:"entity"`
	Dimension  string         `yaml:"dimension" json:"dimension"`
	InputIndex int            `yaml:"input_index" json:"input_index"`
	Input      map[string]any `yaml:"input" json:"input"`
	Criteria   map[string]any `yaml:"criteria,omitempty" json:"criteria,omitempty"`

	// Scored marks dimensions that need a post-hoc judgment of the output.
	Scored bool `yaml:"scored,omitempty" json:"scored,omitempty"`

	// Multi-run sampling. Runs > 1 on a group parent; children carry
	// RunIndex (1-based) and ParentID.
	MultiRun bool   `yaml:"multi_run,omitempty" json:"multi_run,omitempty"`
	Runs     int    `yaml:"runs,omitempty" json:"runs,omitempty"`
	RunIndex int    `yaml:"run_index,omitempty" json:"run_index,omitempty"`
	ParentID string `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
}

// IsParent reports whether this spec is the logical parent of a multi-run group.
func (s *TestSpec) IsParent() bool {
	return s.MultiRun && s.Runs > 1 && s.RunIndex == 0
}

// IsChild reports whether this spec is one sampled run of a multi-run group.
func (s *TestSpec) IsChild() bool {
	return s.ParentID != ""
}

// BatchSpec is a batch definition file: execution config plus the test
// definitions to expand into specs.
type BatchSpec struct {
	Name   string      `yaml:"name"`
	Config BatchConfig `yaml:"config"`
	Tests  []TestDef   `yaml:"tests"`
}

// BatchConfig controls orchestrator behavior for a batch.
type BatchConfig struct {
	MaxConcurrency    int         `yaml:"max_concurrency"`
	MaxEvaluatorCalls int         `yaml:"max_evaluator_calls"`
	TimeoutSec        int         `yaml:"timeout_seconds"`
	Retry             RetryConfig `yaml:"retry,omitempty"`
	CacheTTLSec       int         `yaml:"cache_ttl_seconds,omitempty"`
}

// RetryConfig controls retry behavior for transient adapter failures.
type RetryConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxRetries int  `yaml:"max_retries"`
	DelayMs    int  `yaml:"delay_ms"`
}

// TestDef is one test definition in a batch file. Definitions with Runs > 1
// expand into a parent spec plus one child spec per run.
type TestDef struct {
	ID        string         `yaml:"id"`
	Entity    Entity         `yaml:"entity"`
	Dimension string         `yaml:"dimension"`
	Input     map[string]any `yaml:"input"`
	Criteria  map[string]any `yaml:"criteria,omitempty"`
	Scored    bool           `yaml:"scored,omitempty"`
	Runs      int            `yaml:"runs,omitempty"`
}

// LoadBatchSpec loads a batch definition from a YAML file.
func LoadBatchSpec(path string) (*BatchSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var batch BatchSpec
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, err
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}

	return &batch, nil
}

// Validate checks that the batch definition is well formed.
func (b *BatchSpec) Validate() error {
	if len(b.Tests) == 0 {
		return fmt.Errorf("batch %q defines no tests", b.Name)
	}
	if b.Config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", b.Config.MaxConcurrency)
	}
	if b.Config.MaxEvaluatorCalls < 1 {
		return fmt.Errorf("max_evaluator_calls must be at least 1, got %d", b.Config.MaxEvaluatorCalls)
	}
	if b.Config.TimeoutSec < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1, got %d", b.Config.TimeoutSec)
	}
	seen := make(map[string]struct{}, len(b.Tests))
	for _, def := range b.Tests {
		if def.ID == "" {
			return fmt.Errorf("batch %q contains a test with no id", b.Name)
		}
		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("duplicate test id %q", def.ID)
		}
		seen[def.ID] = struct{}{}
		if def.Entity.Name == "" {
			return fmt.Errorf("test %q has no entity name", def.ID)
		}
		switch def.Entity.Kind {
		case EntityKindAgent, EntityKindTeam:
		default:
			return fmt.Errorf("test %q has invalid entity kind %q", def.ID, def.Entity.Kind)
		}
		if def.Runs < 0 {
			return fmt.Errorf("test %q has negative runs", def.ID)
		}
	}
	return nil
}

// ExpandSpecs turns the batch's test definitions into the flat spec list the
// orchestrator consumes. A definition with Runs > 1 becomes one parent spec
// plus Runs child specs linked through ParentID.
func (b *BatchSpec) ExpandSpecs() []*TestSpec {
	specs := make([]*TestSpec, 0, len(b.Tests))

	for idx, def := range b.Tests {
		if def.Runs > 1 {
			parent := &TestSpec{
				ID:         def.ID,
				Entity:     def.Entity,
				Dimension:  def.Dimension,
				InputIndex: idx,
				Input:      def.Input,
				Criteria:   def.Criteria,
				Scored:     def.Scored,
				MultiRun:   true,
				Runs:       def.Runs,
			}
			specs = append(specs, parent)

			for run := 1; run <= def.Runs; run++ {
				specs = append(specs, &TestSpec{
					ID:         fmt.Sprintf("%s-run%d", def.ID, run),
					Entity:     def.Entity,
					Dimension:  def.Dimension,
					InputIndex: idx,
					Input:      def.Input,
					Criteria:   def.Criteria,
					Scored:     def.Scored,
					MultiRun:   true,
					RunIndex:   run,
					ParentID:   def.ID,
				})
			}
			continue
		}

		specs = append(specs, &TestSpec{
			ID:         def.ID,
			Entity:     def.Entity,
			Dimension:  def.Dimension,
			InputIndex: idx,
			Input:      def.Input,
			Criteria:   def.Criteria,
			Scored:     def.Scored,
		})
	}

	return specs
}
