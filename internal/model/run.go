package model

import "time"

// RunStats is the in-memory bookkeeping for the execution scheduler.
// It is not persisted and resets on process restart; it exists only for
// liveness and observability.
type RunStats struct {
	Running           bool      `json:"running"`
	LastExecutionTime time.Time `json:"last_execution_time"`
	ExecutionCount    int64     `json:"execution_count"`
}
