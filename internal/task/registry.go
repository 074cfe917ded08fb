package task

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the id-keyed table of all tasks known to one scheduler
// instance. Every lifecycle transition goes through the registry so that
// snapshot readers and the worker that owns a task never observe a
// half-written record.
type Registry struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]*Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
	}
}

// Create validates the inputs, allocates a unique id and inserts a new
// pending task. The returned id is the sole key for all later operations.
func (r *Registry) Create(name string, fn Func, priority Priority, maxRetries int) (string, error) {
	if fn == nil {
		return "", ErrNilFunc
	}
	if !priority.Valid() {
		return "", fmt.Errorf("%w: %d", ErrInvalidPriority, priority)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	id := fmt.Sprintf("task_%d_%d", r.seq, time.Now().Unix())

	r.tasks[id] = &Task{
		id:         id,
		name:       name,
		fn:         fn,
		priority:   priority,
		status:     StatusPending,
		createdAt:  time.Now().UTC(),
		maxRetries: maxRetries,
	}
	return id, nil
}

// Snapshot returns an immutable copy of the task's current state.
func (r *Registry) Snapshot(id string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.snapshot(), nil
}

// List returns snapshots of all tasks, optionally filtered by status.
// A nil filter returns every task.
func (r *Registry) List(filter *Status) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filter != nil && t.status != *filter {
			continue
		}
		out = append(out, t.snapshot())
	}
	return out
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// countByStatus returns the number of tasks in each status.
func (r *Registry) countByStatus() map[Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[Status]int)
	for _, t := range r.tasks {
		counts[t.status]++
	}
	return counts
}

// averageCompletedDuration averages started-to-finished time over all
// completed tasks. An empty set yields zero.
func (r *Registry) averageCompletedDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total time.Duration
	var n int
	for _, t := range r.tasks {
		if t.status != StatusCompleted || t.startedAt == nil || t.finishedAt == nil {
			continue
		}
		total += t.finishedAt.Sub(*t.startedAt)
		n++
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// priorityOf reports the priority of a runnable (pending or scheduled)
// task. Used by Submit to refuse ids that cannot be queued.
func (r *Registry) priorityOf(id string) (Priority, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	switch t.status {
	case StatusPending, StatusScheduled:
		return t.priority, nil
	case StatusRunning:
		return 0, fmt.Errorf("%w: %s", ErrTaskRunning, id)
	default:
		return 0, fmt.Errorf("%w: %s is %s", ErrNotPending, id, t.status)
	}
}

// acquire transfers ownership of a runnable task to the caller: the task
// moves to running and its work function is handed out. startedAt is set
// on the first acquisition only; retries never reset it. Dequeued ids
// whose task was cancelled in the meantime fail the acquisition here.
func (r *Registry) acquire(id string) (Func, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	switch t.status {
	case StatusPending, StatusScheduled:
	case StatusRunning:
		return nil, fmt.Errorf("%w: %s", ErrTaskRunning, id)
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, id, t.status)
	}

	t.status = StatusRunning
	if t.startedAt == nil {
		now := time.Now().UTC()
		t.startedAt = &now
	}
	return t.fn, nil
}

// complete records a successful attempt: result, finish time and the
// completed status are written together.
func (r *Registry) complete(id string, result any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	t.status = StatusCompleted
	t.result = result
	t.lastError = ""
	t.finishedAt = &now
}

// recordFailure notes a failed attempt and decides whether another one is
// allowed. While retries remain, the attempt counter advances and the
// task stays running; once the ceiling is hit the task is marked failed.
// Returns the retry flag and the attempt count after the decision.
func (r *Registry) recordFailure(id string, errMsg string) (retry bool, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return false, 0
	}
	t.lastError = errMsg
	if t.retryCount < t.maxRetries {
		t.retryCount++
		return true, t.retryCount
	}
	now := time.Now().UTC()
	t.status = StatusFailed
	t.finishedAt = &now
	return false, t.retryCount
}

// fail forces a task into the failed terminal state, keeping whatever
// error was recorded last. Used when a retry sequence is cut short by
// scheduler shutdown.
func (r *Registry) fail(id string, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.status.Terminal() {
		return
	}
	if errMsg != "" {
		t.lastError = errMsg
	}
	now := time.Now().UTC()
	t.status = StatusFailed
	t.finishedAt = &now
}

// markScheduled flags a task as having a deferred-execution entry.
func (r *Registry) markScheduled(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	switch t.status {
	case StatusPending, StatusScheduled:
		t.status = StatusScheduled
		return nil
	case StatusRunning:
		return fmt.Errorf("%w: %s", ErrTaskRunning, id)
	default:
		return fmt.Errorf("%w: %s is %s", ErrNotPending, id, t.status)
	}
}

// cancel moves a not-yet-running task to the cancelled terminal state.
// Running tasks refuse cancellation and continue on their own; terminal
// tasks are already settled. retryCount and any previous error are
// preserved as the cancellation found them.
func (r *Registry) cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	switch {
	case t.status == StatusRunning:
		return fmt.Errorf("%w: %s", ErrTaskRunning, id)
	case t.status.Terminal():
		return fmt.Errorf("%w: %s is %s", ErrNotCancellable, id, t.status)
	}

	t.status = StatusCancelled
	if t.lastError == "" {
		t.lastError = "cancelled before execution"
	}
	now := time.Now().UTC()
	t.finishedAt = &now
	return nil
}
