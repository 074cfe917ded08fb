package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleAtTime(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(testConfig())
	id, err := scheduler.Create("deferred", noopFunc, PriorityNormal)
	require.NoError(t, err)

	at := time.Now().Add(time.Hour)
	require.NoError(t, scheduler.Schedule(id, ScheduleSpec{At: at}))

	snap, err := scheduler.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, snap.Status)

	next, ok := scheduler.NextRun(id)
	require.True(t, ok)
	assert.Equal(t, at, next)

	assert.Equal(t, 1, scheduler.Statistics().ScheduledCount)
}

func TestScheduleInterval(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(testConfig())
	id, err := scheduler.Create("recurring", noopFunc, PriorityNormal)
	require.NoError(t, err)

	before := time.Now()
	require.NoError(t, scheduler.Schedule(id, ScheduleSpec{Interval: 10 * time.Minute}))

	next, ok := scheduler.NextRun(id)
	require.True(t, ok)
	assert.True(t, next.After(before.Add(9*time.Minute)))
}

func TestScheduleCron(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(testConfig())

	t.Run("valid expression", func(t *testing.T) {
		id, err := scheduler.Create("nightly", noopFunc, PriorityNormal)
		require.NoError(t, err)

		require.NoError(t, scheduler.Schedule(id, ScheduleSpec{Cron: "0 3 * * *"}))

		next, ok := scheduler.NextRun(id)
		require.True(t, ok)
		assert.True(t, next.After(time.Now()))
		assert.Equal(t, 3, next.Hour())
	})

	t.Run("invalid expression", func(t *testing.T) {
		id, err := scheduler.Create("garbled", noopFunc, PriorityNormal)
		require.NoError(t, err)

		err = scheduler.Schedule(id, ScheduleSpec{Cron: "not a cron"})
		assert.ErrorIs(t, err, ErrInvalidSchedule)

		// A failed schedule call leaves the task pending.
		snap, serr := scheduler.Status(id)
		require.NoError(t, serr)
		assert.Equal(t, StatusPending, snap.Status)
	})
}

func TestScheduleUsageErrors(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(testConfig())

	t.Run("unknown id", func(t *testing.T) {
		err := scheduler.Schedule("task_404_0", ScheduleSpec{Interval: time.Minute})
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("no trigger", func(t *testing.T) {
		id, err := scheduler.Create("empty spec", noopFunc, PriorityNormal)
		require.NoError(t, err)
		assert.ErrorIs(t, scheduler.Schedule(id, ScheduleSpec{}), ErrInvalidSchedule)
	})

	t.Run("terminal task", func(t *testing.T) {
		id, err := scheduler.Create("finished", noopFunc, PriorityNormal)
		require.NoError(t, err)
		_, err = scheduler.Execute(context.Background(), id)
		require.NoError(t, err)

		assert.ErrorIs(t, scheduler.Schedule(id, ScheduleSpec{Interval: time.Minute}), ErrNotPending)
	})
}

func TestCancelRemovesScheduleEntry(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(testConfig())
	id, err := scheduler.Create("doomed schedule", noopFunc, PriorityNormal)
	require.NoError(t, err)

	require.NoError(t, scheduler.Schedule(id, ScheduleSpec{Interval: time.Minute}))
	require.Equal(t, 1, scheduler.Statistics().ScheduledCount)

	require.NoError(t, scheduler.Cancel(id))

	assert.Equal(t, 0, scheduler.Statistics().ScheduledCount)
	_, ok := scheduler.NextRun(id)
	assert.False(t, ok)

	snap, err := scheduler.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snap.Status)
}

func TestScheduledTaskIsSubmittable(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(testConfig())
	defer scheduler.Stop()

	id, err := scheduler.Create("timer fired", func(ctx context.Context) (any, error) {
		return "ran", nil
	}, PriorityNormal)
	require.NoError(t, err)
	require.NoError(t, scheduler.Schedule(id, ScheduleSpec{At: time.Now().Add(time.Millisecond)}))

	// An external timer observing NextRun hands the task back in via
	// Submit once the time comes.
	require.NoError(t, scheduler.Start())
	require.NoError(t, scheduler.Submit(id))

	require.Eventually(t, func() bool {
		snap, serr := scheduler.Status(id)
		return serr == nil && snap.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	snap, err := scheduler.Status(id)
	require.NoError(t, err)
	assert.Equal(t, "ran", snap.Result)
}

func TestRescheduleUpdatesEntry(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(testConfig())
	id, err := scheduler.Create("moved", noopFunc, PriorityNormal)
	require.NoError(t, err)

	first := time.Now().Add(time.Hour)
	require.NoError(t, scheduler.Schedule(id, ScheduleSpec{At: first}))

	second := time.Now().Add(2 * time.Hour)
	require.NoError(t, scheduler.Schedule(id, ScheduleSpec{At: second}))

	next, ok := scheduler.NextRun(id)
	require.True(t, ok)
	assert.Equal(t, second, next)
	assert.Equal(t, 1, scheduler.Statistics().ScheduledCount)
}
