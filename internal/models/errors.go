package models

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError is a programming-contract violation: an unknown record id,
// a duplicate registration, or a malformed update. Never retried.
type ValidationError struct {
	Op     string
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q: %s", e.Op, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// TimeoutError indicates an adapter call exceeded its wall-clock budget.
// Retryable.
type TimeoutError struct {
	TestID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("test %q: adapter call exceeded %s budget", e.TestID, e.Timeout)
}

// AdapterError indicates the adapter call itself failed. Retryable.
type AdapterError struct {
	TestID string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("test %q: adapter call failed: %v", e.TestID, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// EvaluationError indicates the evaluator call failed. The record is
// downgraded to failed but keeps the raw adapter output.
type EvaluationError struct {
	TestID string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("test %q: evaluation failed: %v", e.TestID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is a transient failure class.
// Timeouts and adapter I/O failures are retryable; validation and evaluation
// failures are not. A validation failure anywhere in the chain wins: an
// adapter surfacing a deterministic contract violation must not retry.
func IsRetryable(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var te *TimeoutError
	var ae *AdapterError
	return errors.As(err, &te) || errors.As(err, &ae)
}
