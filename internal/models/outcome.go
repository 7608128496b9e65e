package models

import "time"

// BatchOutcome is the complete result of one orchestration run, derived
// entirely from the registry once every record is terminal.
type BatchOutcome struct {
	BatchName string        `json:"batch_name"`
	StartedAt time.Time     `json:"started_at"`
	Digest    OutcomeDigest `json:"summary"`
	Records   []*TestRecord `json:"records"`
}

// OutcomeDigest holds aggregate counters over visible units of work.
type OutcomeDigest struct {
	TotalTests  int     `json:"total_tests"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`

	AvgLatencyMs int64 `json:"avg_latency_ms"`
	MinLatencyMs int64 `json:"min_latency_ms"`
	MaxLatencyMs int64 `json:"max_latency_ms"`

	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	EvaluatorCalls int     `json:"evaluator_calls"`
	CostUnits      float64 `json:"cost_units"`

	DurationMs int64 `json:"duration_ms"`
}

// FailedRecords returns the terminal records that carry an error cause, for
// diagnostics. Nothing is silently dropped.
func (o *BatchOutcome) FailedRecords() []*TestRecord {
	var out []*TestRecord
	for _, rec := range o.Records {
		if rec.Status == StatusFailed {
			out = append(out, rec)
		}
	}
	return out
}
