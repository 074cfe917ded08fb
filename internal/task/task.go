package task

import (
	"context"
	"errors"
	"time"
)

// Priority orders tasks in the dispatch queue. Higher values are
// dequeued first.
type Priority int

// Possible task priority values, ascending by urgency.
const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Valid reports whether p is one of the defined priority values.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// String returns the priority name used in logs and snapshots.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Status represents the current lifecycle state of a task.
type Status string

// Possible task status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusScheduled Status = "scheduled"
)

// Terminal reports whether no further status transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Func is the unit of work a task wraps. Arguments are captured by the
// closure at creation time; the function reports its outcome as a result
// value or an error. A nil result with a nil error is a valid success.
type Func func(ctx context.Context) (any, error)

// Common validation and usage errors for tasks.
var (
	// ErrInvalidPriority is returned when a task is created with a
	// priority outside the defined set.
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrNilFunc is returned when a task is created without a work function.
	ErrNilFunc = errors.New("task function cannot be nil")

	// ErrTaskNotFound is returned when an operation references an id
	// that is not present in the registry.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotPending is returned when a task is submitted or executed
	// while not in a runnable (pending or scheduled) state.
	ErrNotPending = errors.New("task is not pending")

	// ErrTaskRunning is returned when an operation is refused because
	// the task is currently executing.
	ErrTaskRunning = errors.New("task is running")

	// ErrNotCancellable is returned when cancellation is requested for a
	// task that already reached a terminal state.
	ErrNotCancellable = errors.New("task cannot be cancelled")
)

// Task is one unit of work tracked by the registry. The identity fields
// (id, name, fn, priority, maxRetries, createdAt) are fixed at creation;
// the lifecycle fields are mutated only through registry transitions.
type Task struct {
	id         string
	name       string
	fn         Func
	priority   Priority
	status     Status
	createdAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time
	result     any
	lastError  string
	retryCount int
	maxRetries int
}

// ID returns the task's unique identifier.
func (t *Task) ID() string {
	return t.id
}

// Snapshot is an immutable copy of a task's current state, safe to hand
// to callers while workers keep mutating the underlying record.
type Snapshot struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Priority   Priority   `json:"priority"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// snapshot copies the task's current state. Callers must hold the
// registry lock.
func (t *Task) snapshot() Snapshot {
	snap := Snapshot{
		ID:         t.id,
		Name:       t.name,
		Priority:   t.priority,
		Status:     t.status,
		CreatedAt:  t.createdAt,
		Result:     t.result,
		Error:      t.lastError,
		RetryCount: t.retryCount,
		MaxRetries: t.maxRetries,
	}
	if t.startedAt != nil {
		started := *t.startedAt
		snap.StartedAt = &started
	}
	if t.finishedAt != nil {
		finished := *t.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}
