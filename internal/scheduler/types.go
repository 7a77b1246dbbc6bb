// Package scheduler implements a single-slot resumable batch queue. A job is
// an ordered list of work items processed in fixed-size chunks; all state
// between chunks lives in a durable store, and the next chunk is triggered
// through an injected re-invocation port so one invocation never exceeds a
// bounded amount of work.
package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyRunning is returned by Start when a job already holds the slot.
var ErrAlreadyRunning = errors.New("scheduler: a batch job is already running")

// RunState is the lifecycle state of the batch job slot.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
)

// ItemStatus is the per-item outcome recorded in the status sink.
type ItemStatus string

const (
	StatusOK       ItemStatus = "ok"
	StatusError    ItemStatus = "error"
	StatusCanceled ItemStatus = "canceled"
)

// WorkItem is one unit of batch work. Key identifies the item in the status
// sink; Payload is an opaque description for the worker.
type WorkItem struct {
	Key     string `json:"key"`
	Payload string `json:"payload"`
}

// Job is the persisted batch job record. Exactly one job may exist at a time.
// Invariant: 0 <= Cursor <= len(Items).
type Job struct {
	ID        string     `json:"id"`
	Items     []WorkItem `json:"items"`
	Cursor    int        `json:"cursor"`
	State     RunState   `json:"state"`
	StartedAt int64      `json:"started_at"` // Unix nanoseconds
}

// Remaining returns the items not yet processed.
func (j *Job) Remaining() []WorkItem {
	if j.Cursor >= len(j.Items) {
		return nil
	}

	return j.Items[j.Cursor:]
}

// JobStore persists the single batch job slot across invocations.
type JobStore interface {
	// LoadJob returns the current job, or (nil, nil) when the slot is empty.
	LoadJob(ctx context.Context) (*Job, error)
	SaveJob(ctx context.Context, job *Job) error
	// ClearJob empties the slot, returning the state machine to idle.
	ClearJob(ctx context.Context) error
}

// Invoker is the external re-invocation facility: a best-effort delayed
// callback keyed by handler name. Implementations must guarantee at most one
// pending invocation per handler after ScheduleAfter returns.
type Invoker interface {
	ScheduleAfter(handler string, delay time.Duration) error
	CancelAll(handler string) error
}

// StatusSink records per-item outcomes for external display.
type StatusSink interface {
	SetStatus(ctx context.Context, itemKey string, status ItemStatus, detail string, when int64) error
}

// Worker processes a single work item, returning a human-readable summary
// for the status sink.
type Worker interface {
	Process(ctx context.Context, item WorkItem) (string, error)
}
