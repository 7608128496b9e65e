package orchestration

import (
	"fmt"
	"time"

	"github.com/agentgauge/agentgauge/internal/models"
)

// Config controls orchestrator behavior. All fields are explicit; there are
// no hidden defaults — Validate rejects incomplete configurations.
type Config struct {
	// MaxConcurrency bounds simultaneous adapter calls.
	MaxConcurrency int

	// MaxEvaluatorCalls independently bounds simultaneous scoring calls.
	// Adapter and evaluator calls have unrelated cost/latency profiles and
	// must not starve each other.
	MaxEvaluatorCalls int

	// Timeout is the per-test wall-clock budget for one adapter call.
	Timeout time.Duration

	// RetryEnabled, MaxRetries and RetryDelay control retry of transient
	// failures (timeouts, adapter I/O). Validation failures never retry.
	RetryEnabled bool
	MaxRetries   int
	RetryDelay   time.Duration

	// CacheTTL is the freshness window for memoized adapter responses.
	// Zero disables caching unless a cache is injected explicitly.
	CacheTTL time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.MaxEvaluatorCalls < 1 {
		return fmt.Errorf("max evaluator calls must be at least 1, got %d", c.MaxEvaluatorCalls)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.RetryEnabled {
		if c.MaxRetries < 1 {
			return fmt.Errorf("max retries must be at least 1 when retry is enabled, got %d", c.MaxRetries)
		}
		if c.RetryDelay < 0 {
			return fmt.Errorf("retry delay cannot be negative, got %s", c.RetryDelay)
		}
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative, got %s", c.CacheTTL)
	}
	return nil
}

// ConfigFromBatch maps a batch file's config block onto an orchestrator Config.
func ConfigFromBatch(bc models.BatchConfig) Config {
	return Config{
		MaxConcurrency:    bc.MaxConcurrency,
		MaxEvaluatorCalls: bc.MaxEvaluatorCalls,
		Timeout:           time.Duration(bc.TimeoutSec) * time.Second,
		RetryEnabled:      bc.Retry.Enabled,
		MaxRetries:        bc.Retry.MaxRetries,
		RetryDelay:        time.Duration(bc.Retry.DelayMs) * time.Millisecond,
		CacheTTL:          time.Duration(bc.CacheTTLSec) * time.Second,
	}
}
