package task

import "time"

// Statistics is an on-demand aggregate over the scheduler's registry,
// queue and worker pool.
type Statistics struct {
	// Total is the number of registered tasks
	Total int `json:"total"`

	// StatusCounts holds the task count per status, including zeroes
	StatusCounts map[Status]int `json:"status_counts"`

	// QueueDepth is the number of ids currently queued
	QueueDepth int `json:"queue_depth"`

	// ActiveWorkers is the number of live workers
	ActiveWorkers int `json:"active_workers"`

	// AverageCompletedDuration averages started-to-finished time over
	// completed tasks; zero when none completed
	AverageCompletedDuration time.Duration `json:"average_completed_duration"`

	// ScheduledCount is the number of live schedule entries
	ScheduledCount int `json:"scheduled_count"`
}

// Statistics aggregates the current state of the scheduler. It never
// fails; an empty registry yields zeroes.
func (s *Scheduler) Statistics() Statistics {
	counts := map[Status]int{
		StatusPending:   0,
		StatusRunning:   0,
		StatusCompleted: 0,
		StatusFailed:    0,
		StatusCancelled: 0,
		StatusScheduled: 0,
	}
	for status, n := range s.registry.countByStatus() {
		counts[status] = n
	}

	return Statistics{
		Total:                    s.registry.Len(),
		StatusCounts:             counts,
		QueueDepth:               s.queue.Len(),
		ActiveWorkers:            int(s.active.Load()),
		AverageCompletedDuration: s.registry.averageCompletedDuration(),
		ScheduledCount:           s.scheduledCount(),
	}
}
