package models

import "time"

// Status represents the execution state of a test record.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusEvaluating Status = "evaluating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Evaluation is the scored judgment an evaluator attaches to a record.
type Evaluation struct {
	Passed    bool    `json:"passed"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
	CostUnits float64 `json:"cost_units,omitempty"`
}

// TestRecord is the registry's authoritative view of one test unit. Records
// are created before execution begins and mutated only through the registry.
type TestRecord struct {
	ID         string `json:"id"`
	EntityName string `json:"entity_name"`
	Dimension  string `json:"dimension"`
	InputIndex int    `json:"input_index"`
	RunIndex   int    `json:"run_index,omitempty"`
	ParentID   string `json:"parent_id,omitempty"`

	Status Status `json:"status"`

	Input    map[string]any `json:"input"`
	Result   string         `json:"result,omitempty"`
	ErrorMsg string         `json:"error_msg,omitempty"`

	LatencyMs int64 `json:"latency_ms"`

	// IsParent marks the logical parent of a multi-run group.
	// VisibleInQueue marks records counted by human-facing views: every
	// non-multi-run record plus each parent, never its children.
	IsParent       bool `json:"is_parent"`
	VisibleInQueue bool `json:"visible_in_queue"`

	// TotalRuns and CompletedRuns are only meaningful on parent records.
	// CompletedRuns only increases and never exceeds TotalRuns.
	TotalRuns     int `json:"total_runs,omitempty"`
	CompletedRuns int `json:"completed_runs,omitempty"`

	Evaluation *Evaluation `json:"evaluation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy safe for callers to hold after the registry lock is
// released. Input maps are shared; they are treated as immutable after spec
// generation.
func (r *TestRecord) Clone() *TestRecord {
	cp := *r
	if r.Evaluation != nil {
		ev := *r.Evaluation
		cp.Evaluation = &ev
	}
	return &cp
}
