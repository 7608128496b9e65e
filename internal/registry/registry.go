// Package registry is the single source of truth for test state during one
// orchestration run. Every consumer (terminal display, final reporting,
// aggregation) queries the same filtered views; no caller recomputes state
// independently.
package registry

import (
	"sync"
	"time"

	"github.com/agentgauge/agentgauge/internal/models"
)

// statusRank orders the record state machine:
// queued -> running -> (evaluating) -> completed | failed.
var statusRank = map[models.Status]int{
	models.StatusQueued:     0,
	models.StatusRunning:    1,
	models.StatusEvaluating: 2,
	models.StatusCompleted:  3,
	models.StatusFailed:     3,
}

// CreateParams describes a record to register. Registration happens before
// any execution begins so progress views are accurate for not-yet-started
// work.
type CreateParams struct {
	ID         string
	EntityName string
	Dimension  string
	InputIndex int
	Input      map[string]any

	// RunIndex is set (1-based) on multi-run children; ParentID links a
	// child to its group parent.
	RunIndex int
	ParentID string

	// IsParent and TotalRuns describe a multi-run group parent.
	IsParent  bool
	TotalRuns int
}

// Update is a partial-field merge applied to an existing record. Nil fields
// are left untouched.
type Update struct {
	Status        *models.Status
	Result        *string
	ErrorMsg      *string
	LatencyMs     *int64
	Evaluation    *models.Evaluation
	CompletedRuns *int
}

// Metrics holds run-level counters accumulated incidentally as the
// orchestrator updates records.
type Metrics struct {
	StartedAt      time.Time
	EvaluatorCalls int
	CostUnits      float64
}

// Counts summarizes visible units of work per state.
type Counts struct {
	Queued     int
	Running    int
	Evaluating int
	Completed  int
	Failed     int
}

// Registry owns all test records for one orchestration run. Updates apply
// atomically and are fully visible to subsequent reads before returning.
type Registry struct {
	mu       sync.RWMutex
	records  map[string]*models.TestRecord
	order    []string
	children map[string][]string

	metrics Metrics

	now func() time.Time
}

// New creates an empty registry. The run start time is captured here.
func New() *Registry {
	return &Registry{
		records:  make(map[string]*models.TestRecord),
		children: make(map[string][]string),
		metrics:  Metrics{StartedAt: time.Now()},
		now:      time.Now,
	}
}

// Create registers a new record in status queued. It fails with a
// ValidationError if the id already exists.
func (r *Registry) Create(p CreateParams) (*models.TestRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[p.ID]; exists {
		return nil, &models.ValidationError{Op: "create", ID: p.ID, Reason: "record already exists"}
	}

	now := r.now()
	rec := &models.TestRecord{
		ID:             p.ID,
		EntityName:     p.EntityName,
		Dimension:      p.Dimension,
		InputIndex:     p.InputIndex,
		RunIndex:       p.RunIndex,
		ParentID:       p.ParentID,
		Status:         models.StatusQueued,
		Input:          p.Input,
		IsParent:       p.IsParent,
		VisibleInQueue: p.ParentID == "",
		TotalRuns:      p.TotalRuns,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.records[p.ID] = rec
	r.order = append(r.order, p.ID)
	if p.ParentID != "" {
		r.children[p.ParentID] = append(r.children[p.ParentID], p.ID)
	}

	return rec.Clone(), nil
}

// Update merges the given fields into an existing record. Unknown ids fail
// with a ValidationError and leave the registry unchanged — never a silent
// insert. Status transitions are monotonic: a terminal record cannot change
// status, and no transition may move backwards.
func (r *Registry) Update(id string, upd Update) (*models.TestRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, &models.ValidationError{Op: "update", ID: id, Reason: "unknown record"}
	}

	// Validate everything before mutating so a rejected update leaves no
	// partial write behind.
	if upd.Status != nil && *upd.Status != rec.Status {
		if rec.Status.IsTerminal() {
			return nil, &models.ValidationError{Op: "update", ID: id,
				Reason: "status " + string(rec.Status) + " is terminal"}
		}
		if statusRank[*upd.Status] < statusRank[rec.Status] {
			return nil, &models.ValidationError{Op: "update", ID: id,
				Reason: "status cannot regress from " + string(rec.Status) + " to " + string(*upd.Status)}
		}
	}
	if upd.CompletedRuns != nil {
		if !rec.IsParent {
			return nil, &models.ValidationError{Op: "update", ID: id, Reason: "completed runs only apply to parent records"}
		}
		if *upd.CompletedRuns < rec.CompletedRuns {
			return nil, &models.ValidationError{Op: "update", ID: id, Reason: "completed runs only increase"}
		}
		if *upd.CompletedRuns > rec.TotalRuns {
			return nil, &models.ValidationError{Op: "update", ID: id, Reason: "completed runs cannot exceed total runs"}
		}
	}

	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.Result != nil {
		rec.Result = *upd.Result
	}
	if upd.ErrorMsg != nil {
		rec.ErrorMsg = *upd.ErrorMsg
	}
	if upd.LatencyMs != nil {
		rec.LatencyMs = *upd.LatencyMs
	}
	if upd.Evaluation != nil {
		rec.Evaluation = upd.Evaluation
	}
	if upd.CompletedRuns != nil {
		rec.CompletedRuns = *upd.CompletedRuns
	}
	rec.UpdatedAt = r.now()

	return rec.Clone(), nil
}

// Get returns a copy of the record, or a ValidationError for unknown ids.
func (r *Registry) Get(id string) (*models.TestRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, &models.ValidationError{Op: "get", ID: id, Reason: "unknown record"}
	}
	return rec.Clone(), nil
}

// All returns copies of every record in insertion order.
func (r *Registry) All() []*models.TestRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.TestRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].Clone())
	}
	return out
}

// Queued returns visible units of work that have not started.
func (r *Registry) Queued() []*models.TestRecord {
	return r.visibleByStatus(models.StatusQueued)
}

// Evaluating returns visible units of work awaiting a scored judgment.
func (r *Registry) Evaluating() []*models.TestRecord {
	return r.visibleByStatus(models.StatusEvaluating)
}

// Completed returns visible units of work that reached a terminal status.
func (r *Registry) Completed() []*models.TestRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.TestRecord
	for _, id := range r.order {
		rec := r.records[id]
		if rec.VisibleInQueue && rec.Status.IsTerminal() {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func (r *Registry) visibleByStatus(status models.Status) []*models.TestRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.TestRecord
	for _, id := range r.order {
		rec := r.records[id]
		if rec.VisibleInQueue && rec.Status == status {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// VisibleCounts tallies visible units of work by state.
func (r *Registry) VisibleCounts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var c Counts
	for _, id := range r.order {
		rec := r.records[id]
		if !rec.VisibleInQueue {
			continue
		}
		switch rec.Status {
		case models.StatusQueued:
			c.Queued++
		case models.StatusRunning:
			c.Running++
		case models.StatusEvaluating:
			c.Evaluating++
		case models.StatusCompleted:
			c.Completed++
		case models.StatusFailed:
			c.Failed++
		}
	}
	return c
}

// RecordEvaluatorCall accumulates evaluator usage for downstream reporting.
func (r *Registry) RecordEvaluatorCall(costUnits float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.EvaluatorCalls++
	r.metrics.CostUnits += costUnits
}

// Metrics returns the accumulated run counters.
func (r *Registry) Metrics() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}

// ChildFinished bumps the parent's CompletedRuns by one. Called by the
// orchestrator whenever a child of the group reaches a terminal status.
func (r *Registry) ChildFinished(parentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[parentID]
	if !ok {
		return 0, &models.ValidationError{Op: "child finished", ID: parentID, Reason: "unknown record"}
	}
	if !rec.IsParent {
		return 0, &models.ValidationError{Op: "child finished", ID: parentID, Reason: "record is not a group parent"}
	}
	if rec.CompletedRuns >= rec.TotalRuns {
		return 0, &models.ValidationError{Op: "child finished", ID: parentID, Reason: "completed runs cannot exceed total runs"}
	}

	rec.CompletedRuns++
	rec.UpdatedAt = r.now()
	return rec.CompletedRuns, nil
}

// ResolveParent applies the multi-run majority rule: once every child of the
// parent has reached a terminal status, the parent resolves to completed iff
// strictly more than half of its children completed; ties fail. Returns false
// without mutating anything while children are still outstanding or when the
// parent is already terminal.
func (r *Registry) ResolveParent(parentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[parentID]
	if !ok {
		return false, &models.ValidationError{Op: "resolve parent", ID: parentID, Reason: "unknown record"}
	}
	if !rec.IsParent {
		return false, &models.ValidationError{Op: "resolve parent", ID: parentID, Reason: "record is not a group parent"}
	}
	if rec.Status.IsTerminal() {
		return false, nil
	}

	childIDs := r.children[parentID]
	if len(childIDs) < rec.TotalRuns {
		return false, nil
	}

	completed := 0
	var totalLatency int64
	for _, id := range childIDs {
		child, ok := r.records[id]
		if !ok {
			return false, &models.ValidationError{Op: "resolve parent", ID: id, Reason: "unknown child record"}
		}
		if !child.Status.IsTerminal() {
			return false, nil
		}
		if child.Status == models.StatusCompleted {
			completed++
		}
		totalLatency += child.LatencyMs
	}

	// Strict majority: exactly half completed resolves to failed.
	if completed*2 > rec.TotalRuns {
		rec.Status = models.StatusCompleted
	} else {
		rec.Status = models.StatusFailed
	}
	rec.CompletedRuns = rec.TotalRuns
	rec.LatencyMs = totalLatency / int64(len(childIDs))
	rec.UpdatedAt = r.now()

	return true, nil
}

// Children returns copies of the parent's child records in creation order.
func (r *Registry) Children(parentID string) []*models.TestRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.children[parentID]
	out := make([]*models.TestRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.records[id].Clone())
	}
	return out
}
