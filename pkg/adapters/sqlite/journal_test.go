package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/sluice/pkg/adapters/sqlite"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteJournal_Contract(t *testing.T) {
	j, err := sqlite.Open(filepath.Join(t.TempDir(), ".sluice", "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	ports.RunJournalContract(t, j)
}

func TestSQLiteJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	j, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Begin(ctx, &ports.Run{ID: "a", StartedAt: time.Now()}))
	require.NoError(t, j.Close())

	j, err = sqlite.Open(path)
	require.NoError(t, err)
	defer j.Close()

	runs, err := j.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)
	assert.True(t, runs[0].FinishedAt.IsZero())
}

func TestSQLiteJournal_DuplicateBegin(t *testing.T) {
	j, err := sqlite.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	require.NoError(t, j.Begin(ctx, &ports.Run{ID: "a", StartedAt: time.Now()}))
	assert.Error(t, j.Begin(ctx, &ports.Run{ID: "a", StartedAt: time.Now()}))
}
