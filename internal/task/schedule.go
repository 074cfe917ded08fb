package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dispatchd/dispatch/internal/events"
)

// ErrInvalidSchedule is returned when a schedule spec names no trigger
// or carries an unparseable cron expression.
var ErrInvalidSchedule = errors.New("invalid schedule spec")

// ScheduleSpec describes when a task should run. Exactly one trigger is
// consulted, in order: Cron, At, Interval.
type ScheduleSpec struct {
	// At is a specific time to execute
	At time.Time

	// Interval is a recurring interval
	Interval time.Duration

	// Cron is a standard five-field cron expression
	Cron string
}

// nextRun computes the first fire time after now.
func (sp ScheduleSpec) nextRun(now time.Time) (time.Time, error) {
	switch {
	case sp.Cron != "":
		sched, err := cron.ParseStandard(sp.Cron)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		return sched.Next(now), nil
	case !sp.At.IsZero():
		return sp.At, nil
	case sp.Interval > 0:
		return now.Add(sp.Interval), nil
	default:
		return time.Time{}, fmt.Errorf("%w: no trigger specified", ErrInvalidSchedule)
	}
}

// scheduleEntry is the bookkeeping record for one scheduled task.
type scheduleEntry struct {
	spec    ScheduleSpec
	nextRun time.Time
}

// Schedule records the intent to run a task later and marks it
// scheduled. The scheduler does not drive a clock of its own; an
// external timer observes NextRun and calls Submit or Execute when the
// time comes.
func (s *Scheduler) Schedule(id string, spec ScheduleSpec) error {
	next, err := spec.nextRun(time.Now())
	if err != nil {
		s.logger.Error("schedule refused", "task_id", id, "error", err)
		return err
	}
	if err := s.registry.markScheduled(id); err != nil {
		s.logger.Error("schedule refused", "task_id", id, "error", err)
		return err
	}

	s.schedMu.Lock()
	s.schedules[id] = scheduleEntry{spec: spec, nextRun: next}
	s.schedMu.Unlock()

	s.logger.Info("scheduled task", "task_id", id, "next_run", next)
	s.emit(events.TaskScheduled, id, map[string]any{"next_run": next})
	return nil
}

// NextRun reports the recorded fire time of a scheduled task.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	entry, ok := s.schedules[id]
	if !ok {
		return time.Time{}, false
	}
	return entry.nextRun, true
}

// scheduledCount returns the number of live schedule entries.
func (s *Scheduler) scheduledCount() int {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return len(s.schedules)
}
