package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLockerContract runs a suite of tests to verify that a DistributedLocker
// implementation adheres to the interface contract.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405.000000")

	t.Run("Lock and Unlock", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)
		require.NoError(t, unlock(ctx))
		assert.NoError(t, unlock(ctx), "unlock is idempotent")
	})

	t.Run("TryLock while held", func(t *testing.T) {
		unlock, err := locker.TryLock(ctx, key, time.Minute)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		_, err = locker.TryLock(ctx, key, time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)
	})

	t.Run("Lock waits for release", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)

		released := make(chan struct{})
		go func() {
			time.Sleep(150 * time.Millisecond)
			_ = unlock(ctx)
			close(released)
		}()

		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		second, err := locker.Lock(waitCtx, key, time.Minute)
		require.NoError(t, err)
		<-released
		require.NoError(t, second(ctx))
	})

	t.Run("Lock honours context", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(waitCtx, key, time.Minute)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	})

	t.Run("Keys are independent", func(t *testing.T) {
		a, err := locker.TryLock(ctx, key+"-a", time.Minute)
		require.NoError(t, err)
		defer func() { _ = a(ctx) }()

		b, err := locker.TryLock(ctx, key+"-b", time.Minute)
		require.NoError(t, err)
		require.NoError(t, b(ctx))
	})
}

// RunJournalContract runs a suite of tests to verify that a RunJournal
// implementation adheres to the interface contract.
func RunJournalContract(t *testing.T, journal RunJournal) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Begin and Finish", func(t *testing.T) {
		run := &Run{ID: "run-1", Pipeline: "textures.yaml", StartedAt: base}
		require.NoError(t, journal.Begin(ctx, run))
		assert.Equal(t, RunRunning, run.Status)

		run.Status = RunSucceeded
		run.FinishedAt = base.Add(time.Minute)
		run.Roots, run.Completed, run.Processed, run.Purged = 3, 3, 7, 2
		require.NoError(t, journal.Finish(ctx, run))

		runs, err := journal.Recent(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, runs)
		got := runs[0]
		assert.Equal(t, "run-1", got.ID)
		assert.Equal(t, RunSucceeded, got.Status)
		assert.Equal(t, "textures.yaml", got.Pipeline)
		assert.Equal(t, 7, got.Processed)
		assert.Equal(t, 2, got.Purged)
		assert.True(t, got.StartedAt.Equal(base), "started at %v", got.StartedAt)
		assert.True(t, got.FinishedAt.Equal(base.Add(time.Minute)), "finished at %v", got.FinishedAt)
	})

	t.Run("Finish unknown run", func(t *testing.T) {
		err := journal.Finish(ctx, &Run{ID: "never-begun", Status: RunFailed})
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("Recent orders and limits", func(t *testing.T) {
		for i, id := range []string{"run-2", "run-3", "run-4"} {
			run := &Run{ID: id, StartedAt: base.Add(time.Duration(i+1) * time.Hour)}
			require.NoError(t, journal.Begin(ctx, run))
		}
		failed := &Run{ID: "run-3", Status: RunFailed, Error: "boom", FinishedAt: base.Add(4 * time.Hour)}
		require.NoError(t, journal.Finish(ctx, failed))

		runs, err := journal.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-4", runs[0].ID)
		assert.Equal(t, RunRunning, runs[0].Status)
		assert.Equal(t, "run-3", runs[1].ID)
		assert.Equal(t, RunFailed, runs[1].Status)
		assert.Equal(t, "boom", runs[1].Error)
	})
}
