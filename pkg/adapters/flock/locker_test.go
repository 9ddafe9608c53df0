package flock_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sluice/pkg/adapters/flock"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlockLocker_Contract(t *testing.T) {
	ports.RunLockerContract(t, flock.New(t.TempDir()))
}

func TestFlockLocker_CreatesLockDir(t *testing.T) {
	dir := t.TempDir() + "/nested/.sluice"
	l := flock.New(dir)

	unlock, err := l.TryLock(context.Background(), "cache", time.Minute)
	require.NoError(t, err)
	assert.FileExists(t, l.Path("cache"))
	require.NoError(t, unlock(context.Background()))
}
