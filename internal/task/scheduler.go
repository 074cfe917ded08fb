package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dispatchd/dispatch/internal/events"
)

// ErrSchedulerStopped is returned when Start is called on a scheduler
// that was already shut down. A stopped scheduler is not restartable.
var ErrSchedulerStopped = errors.New("scheduler is stopped")

// stopTimeout bounds how long Stop waits for workers to finish their
// current attempt.
const stopTimeout = 5 * time.Second

// Config holds configuration for a Scheduler.
type Config struct {
	// Workers determines how many concurrent workers process tasks
	Workers int

	// MaxRetries is the retry ceiling applied to tasks created without
	// an explicit one
	MaxRetries int

	// BackoffBase is the base delay for exponential retry backoff;
	// attempt n waits BackoffBase * 2^n
	BackoffBase time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     2,
		MaxRetries:  3,
		BackoffBase: time.Second,
	}
}

// Scheduler owns a task registry and a priority queue and dispatches
// queued tasks across a bounded pool of workers. All operations on tasks
// go through the scheduler; independent schedulers share no state.
type Scheduler struct {
	registry *Registry
	queue    *Queue
	cfg      Config
	logger   *slog.Logger
	emitter  events.Emitter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int32

	mu      sync.Mutex
	running bool
	stopped bool

	schedMu   sync.Mutex
	schedules map[string]scheduleEntry
}

// New creates a Scheduler with the given configuration. Invalid config
// values are replaced with defaults.
func New(cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Workers < 1 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.Workers,
			"default_count", 1)
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		registry:  NewRegistry(),
		queue:     NewQueue(),
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
		schedules: make(map[string]scheduleEntry),
	}
}

// SetEmitter registers an emitter for task lifecycle events. A nil
// emitter (the default) disables event emission.
func (s *Scheduler) SetEmitter(emitter events.Emitter) {
	s.emitter = emitter
}

// Create registers a new pending task wrapping fn and returns its id.
// The scheduler's default retry ceiling applies.
func (s *Scheduler) Create(name string, fn Func, priority Priority) (string, error) {
	return s.CreateWithRetries(name, fn, priority, s.cfg.MaxRetries)
}

// CreateWithRetries registers a new pending task with an explicit retry
// ceiling.
func (s *Scheduler) CreateWithRetries(name string, fn Func, priority Priority, maxRetries int) (string, error) {
	id, err := s.registry.Create(name, fn, priority, maxRetries)
	if err != nil {
		return "", err
	}

	s.logger.Info("created task",
		"task_id", id,
		"task_name", name,
		"priority", priority.String())
	s.emit(events.TaskCreated, id, map[string]any{"name": name, "priority": priority.String()})

	return id, nil
}

// Submit places a pending or scheduled task on the priority queue for
// asynchronous pickup by a worker. Submitting an unknown id or a task in
// any other state is a usage error.
func (s *Scheduler) Submit(id string) error {
	priority, err := s.registry.priorityOf(id)
	if err != nil {
		s.logger.Error("submit refused", "task_id", id, "error", err)
		return err
	}
	if err := s.queue.Enqueue(id, priority); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", id, err)
	}

	s.logger.Info("submitted task", "task_id", id, "queue_depth", s.queue.Len())
	s.emit(events.TaskSubmitted, id, nil)
	return nil
}

// Execute runs a task synchronously on the calling goroutine, bypassing
// the queue. The task goes through the same retry machinery as queued
// execution; a work failure is absorbed into the task's error field, so
// the returned error only reports usage problems (unknown id, task not
// in a runnable state).
func (s *Scheduler) Execute(ctx context.Context, id string) (any, error) {
	fn, err := s.registry.acquire(id)
	if err != nil {
		s.logger.Error("execute refused", "task_id", id, "error", err)
		return nil, err
	}
	return s.executeAcquired(ctx, id, fn, s.logger), nil
}

// Cancel moves a task that has not started to the cancelled terminal
// state and drops any schedule entry it had. Cancelling a running task
// is refused; the task continues on its own. The id may still sit in the
// queue structure, workers skip it at acquisition time.
func (s *Scheduler) Cancel(id string) error {
	if err := s.registry.cancel(id); err != nil {
		s.logger.Warn("cancel refused", "task_id", id, "error", err)
		return err
	}

	s.schedMu.Lock()
	delete(s.schedules, id)
	s.schedMu.Unlock()

	s.logger.Info("cancelled task", "task_id", id)
	s.emit(events.TaskCancelled, id, nil)
	return nil
}

// Status returns an immutable snapshot of the task's current state.
func (s *Scheduler) Status(id string) (Snapshot, error) {
	return s.registry.Snapshot(id)
}

// ListTasks returns snapshots of all tasks, optionally filtered by
// status. A nil filter returns every task.
func (s *Scheduler) ListTasks(filter *Status) []Snapshot {
	return s.registry.List(filter)
}

// Start spawns the configured number of workers. Calling Start while the
// scheduler is already running is a no-op with a warning. A scheduler
// that has been stopped cannot be started again.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.running {
		s.logger.Warn("workers already running")
		return nil
	}
	s.running = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		s.active.Add(1)
		go s.worker(i + 1)
	}

	s.logger.Info("started workers", "worker_count", s.cfg.Workers)
	return nil
}

// Stop shuts the worker pool down: no further queue items are
// dispatched, workers finish the attempt they are on, and retry backoff
// waits are cut short (such tasks settle as failed with their last
// recorded error). Stop waits a bounded time for workers to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info("stopping workers")
	s.cancel()
	s.queue.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("workers stopped")
	case <-time.After(stopTimeout):
		s.logger.Warn("timed out waiting for workers to stop", "timeout", stopTimeout)
	}
}

// worker pulls task ids off the queue until the queue is closed. Each
// worker processes one task at a time; ownership of a task transfers at
// acquisition and is released by the terminal-state write.
func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	defer s.active.Add(-1)

	logger := s.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		taskID, ok := s.queue.Dequeue()
		if !ok {
			logger.Debug("queue closed, stopping worker")
			return
		}

		fn, err := s.registry.acquire(taskID)
		if err != nil {
			// Usually a task cancelled between submit and dequeue.
			logger.Debug("skipping queued task", "task_id", taskID, "reason", err)
			continue
		}
		s.executeAcquired(s.ctx, taskID, fn, logger)
	}
}

// executeAcquired runs an already-acquired task through the retry loop.
// Attempt n that fails waits BackoffBase * 2^n before the next one; once
// the retry ceiling is hit the task settles as failed. Work failures,
// including panics, never escape to the caller.
func (s *Scheduler) executeAcquired(ctx context.Context, id string, fn Func, logger *slog.Logger) any {
	logger = logger.With("task_id", id)
	logger.Info("executing task")
	s.emit(events.TaskStarted, id, nil)

	for {
		result, err := invoke(ctx, fn)
		if err == nil {
			s.registry.complete(id, result)
			logger.Info("task completed")
			s.emit(events.TaskCompleted, id, nil)
			return result
		}

		retry, attempt := s.registry.recordFailure(id, err.Error())
		if !retry {
			logger.Error("task failed, retries exhausted",
				"error", err,
				"retry_count", attempt)
			s.emit(events.TaskFailed, id, map[string]any{"error": err.Error(), "retry_count": attempt})
			return nil
		}

		delay := s.cfg.BackoffBase << attempt
		logger.Warn("task attempt failed, retrying",
			"error", err,
			"attempt", attempt,
			"backoff", delay)
		s.emit(events.TaskRetried, id, map[string]any{"error": err.Error(), "attempt": attempt})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.registry.fail(id, "")
			logger.Warn("retry backoff interrupted by shutdown, task failed")
			s.emit(events.TaskFailed, id, map[string]any{"error": "interrupted by shutdown"})
			return nil
		}
	}
}

// invoke runs the work function, converting a panic into an ordinary
// error so a misbehaving task never takes down a worker.
func invoke(ctx context.Context, fn Func) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// emit builds and publishes a lifecycle event if an emitter is set.
func (s *Scheduler) emit(eventType events.Type, taskID string, payload any) {
	if s.emitter == nil {
		return
	}
	event, err := events.New(eventType, taskID, payload)
	if err != nil {
		s.logger.Error("failed to build lifecycle event",
			"event_type", eventType,
			"task_id", taskID,
			"error", err)
		return
	}
	if err := s.emitter.Emit(context.Background(), event); err != nil {
		s.logger.Error("failed to emit lifecycle event",
			"event_type", eventType,
			"task_id", taskID,
			"error", err)
	}
}
