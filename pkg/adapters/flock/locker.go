package flock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/sluice/pkg/ports"
	"github.com/gofrs/flock"
)

// Locker implements ports.DistributedLocker with advisory file locks in dir.
// It covers processes on one host; ttl is ignored because the kernel
// releases the lock when the holder exits.
type Locker struct {
	dir        string
	retryDelay time.Duration
}

// New creates a locker keeping its lock files in dir.
func New(dir string) *Locker {
	return &Locker{dir: dir, retryDelay: 50 * time.Millisecond}
}

// Path returns the lock file used for key.
func (l *Locker) Path(key string) string {
	return filepath.Join(l.dir, key+".lock")
}

// Lock blocks until the file lock for key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	fl, err := l.open(key)
	if err != nil {
		return nil, err
	}
	ok, err := fl.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, ctx.Err()
	}
	return release(fl), nil
}

// TryLock acquires the file lock for key or returns ports.ErrLockHeld.
func (l *Locker) TryLock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	fl, err := l.open(key)
	if err != nil {
		return nil, err
	}
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, ports.ErrLockHeld
	}
	return release(fl), nil
}

func (l *Locker) open(key string) (*flock.Flock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure lock directory: %w", err)
	}
	return flock.New(l.Path(key)), nil
}

func release(fl *flock.Flock) ports.UnlockFunc {
	var once sync.Once
	var err error
	return func(context.Context) error {
		once.Do(func() {
			err = fl.Unlock()
		})
		return err
	}
}
