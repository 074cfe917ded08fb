package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopFunc(ctx context.Context) (any, error) {
	return nil, nil
}

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	t.Run("successful creation", func(t *testing.T) {
		id, err := registry.Create("demo", noopFunc, PriorityNormal, 3)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		snap, err := registry.Snapshot(id)
		require.NoError(t, err)
		assert.Equal(t, "demo", snap.Name)
		assert.Equal(t, StatusPending, snap.Status)
		assert.Equal(t, PriorityNormal, snap.Priority)
		assert.Equal(t, 0, snap.RetryCount)
		assert.Equal(t, 3, snap.MaxRetries)
		assert.Nil(t, snap.StartedAt)
		assert.Nil(t, snap.FinishedAt)
		assert.False(t, snap.CreatedAt.IsZero())
	})

	t.Run("unique ids", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id, err := registry.Create("dup check", noopFunc, PriorityLow, 0)
			require.NoError(t, err)
			assert.False(t, seen[id], "id %s generated twice", id)
			seen[id] = true
		}
	})

	t.Run("invalid priority", func(t *testing.T) {
		_, err := registry.Create("bad", noopFunc, Priority(99), 0)
		assert.ErrorIs(t, err, ErrInvalidPriority)
	})

	t.Run("nil function", func(t *testing.T) {
		_, err := registry.Create("nil fn", nil, PriorityNormal, 0)
		assert.ErrorIs(t, err, ErrNilFunc)
	})

	t.Run("negative retry ceiling clamps to zero", func(t *testing.T) {
		id, err := registry.Create("clamped", noopFunc, PriorityNormal, -5)
		require.NoError(t, err)
		snap, err := registry.Snapshot(id)
		require.NoError(t, err)
		assert.Equal(t, 0, snap.MaxRetries)
	})
}

func TestRegistrySnapshotNotFound(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, err := registry.Snapshot("task_99_0")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRegistryList(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	first, err := registry.Create("first", noopFunc, PriorityNormal, 0)
	require.NoError(t, err)
	_, err = registry.Create("second", noopFunc, PriorityHigh, 0)
	require.NoError(t, err)

	assert.Len(t, registry.List(nil), 2)

	// Move one task to a terminal state and filter on it.
	_, err = registry.acquire(first)
	require.NoError(t, err)
	registry.complete(first, "done")

	completed := StatusCompleted
	snaps := registry.List(&completed)
	require.Len(t, snaps, 1)
	assert.Equal(t, "first", snaps[0].Name)

	pending := StatusPending
	snaps = registry.List(&pending)
	require.Len(t, snaps, 1)
	assert.Equal(t, "second", snaps[0].Name)
}

func TestRegistryAcquireTransitions(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id, err := registry.Create("lifecycle", noopFunc, PriorityNormal, 1)
	require.NoError(t, err)

	fn, err := registry.acquire(id)
	require.NoError(t, err)
	require.NotNil(t, fn)

	snap, err := registry.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, snap.Status)
	require.NotNil(t, snap.StartedAt)
	startedAt := *snap.StartedAt

	// Acquiring a running task is refused.
	_, err = registry.acquire(id)
	assert.ErrorIs(t, err, ErrTaskRunning)

	// A failed attempt with retries left keeps the task running and
	// does not reset startedAt.
	retry, attempt := registry.recordFailure(id, "boom")
	assert.True(t, retry)
	assert.Equal(t, 1, attempt)

	snap, err = registry.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, "boom", snap.Error)
	require.NotNil(t, snap.StartedAt)
	assert.Equal(t, startedAt, *snap.StartedAt)

	// The next failure exhausts the ceiling.
	retry, attempt = registry.recordFailure(id, "boom again")
	assert.False(t, retry)
	assert.Equal(t, 1, attempt)

	snap, err = registry.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "boom again", snap.Error)
	assert.NotNil(t, snap.FinishedAt)
	assert.Nil(t, snap.Result)
}

func TestRegistryComplete(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id, err := registry.Create("completes", noopFunc, PriorityNormal, 0)
	require.NoError(t, err)

	_, err = registry.acquire(id)
	require.NoError(t, err)
	registry.complete(id, 42)

	snap, err := registry.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 42, snap.Result)
	assert.Empty(t, snap.Error)
	assert.NotNil(t, snap.FinishedAt)

	// Terminal tasks are not acquirable.
	_, err = registry.acquire(id)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestRegistryCancel(t *testing.T) {
	t.Parallel()

	t.Run("pending task", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		id, err := registry.Create("cancel me", noopFunc, PriorityNormal, 0)
		require.NoError(t, err)

		require.NoError(t, registry.cancel(id))

		snap, err := registry.Snapshot(id)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, snap.Status)
		assert.Equal(t, "cancelled before execution", snap.Error)
		assert.NotNil(t, snap.FinishedAt)
	})

	t.Run("running task refused", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		id, err := registry.Create("busy", noopFunc, PriorityNormal, 0)
		require.NoError(t, err)
		_, err = registry.acquire(id)
		require.NoError(t, err)

		assert.ErrorIs(t, registry.cancel(id), ErrTaskRunning)

		snap, err := registry.Snapshot(id)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, snap.Status)
	})

	t.Run("terminal task refused", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		id, err := registry.Create("settled", noopFunc, PriorityNormal, 0)
		require.NoError(t, err)
		_, err = registry.acquire(id)
		require.NoError(t, err)
		registry.complete(id, nil)

		assert.ErrorIs(t, registry.cancel(id), ErrNotCancellable)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		assert.ErrorIs(t, registry.cancel("task_404_0"), ErrTaskNotFound)
	})
}

func TestRegistryFailKeepsHistory(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id, err := registry.Create("interrupted", noopFunc, PriorityNormal, 3)
	require.NoError(t, err)
	_, err = registry.acquire(id)
	require.NoError(t, err)

	retry, _ := registry.recordFailure(id, "first failure")
	require.True(t, retry)

	// A forced failure (retry sequence cut short) keeps the last
	// recorded error and attempt count.
	registry.fail(id, "")
	snap, err := registry.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "first failure", snap.Error)
	assert.Equal(t, 1, snap.RetryCount)
	assert.NotNil(t, snap.FinishedAt)

	// fail on an already-terminal task is a no-op.
	registry.fail(id, "later")
	again, err := registry.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, "first failure", again.Error)
}

func TestRegistryCounts(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	assert.Equal(t, 0, registry.Len())
	assert.Empty(t, registry.countByStatus())
	assert.Equal(t, int64(0), int64(registry.averageCompletedDuration()))

	a, err := registry.Create("a", noopFunc, PriorityNormal, 0)
	require.NoError(t, err)
	_, err = registry.Create("b", noopFunc, PriorityNormal, 0)
	require.NoError(t, err)

	_, err = registry.acquire(a)
	require.NoError(t, err)
	registry.complete(a, nil)

	assert.Equal(t, 2, registry.Len())
	counts := registry.countByStatus()
	assert.Equal(t, 1, counts[StatusCompleted])
	assert.Equal(t, 1, counts[StatusPending])
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id, err := registry.Create("copy", noopFunc, PriorityNormal, 0)
	require.NoError(t, err)

	_, err = registry.acquire(id)
	require.NoError(t, err)

	before, err := registry.Snapshot(id)
	require.NoError(t, err)

	registry.complete(id, "value")

	// The earlier snapshot is unaffected by later transitions.
	assert.Equal(t, StatusRunning, before.Status)
	assert.Nil(t, before.Result)

	after, err := registry.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, after.Status)

	// Mutating snapshot timestamp pointers must not reach the record.
	require.NotNil(t, after.StartedAt)
	*after.StartedAt = after.StartedAt.Add(time.Hour)
	again, err := registry.Snapshot(id)
	require.NoError(t, err)
	assert.NotEqual(t, *after.StartedAt, *again.StartedAt)
}
