package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when a lock is held by someone else and the caller
// asked not to wait.
var ErrLockHeld = errors.New("lock is held by another process")

// UnlockFunc releases a lock. It is safe to call more than once.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates access to a cache root across processes and
// hosts, so one run never purges entries another run is still producing.
type DistributedLocker interface {
	// Lock acquires the lock for key. It blocks until the lock is acquired or
	// ctx is done. ttl bounds how long a crashed holder can keep the lock,
	// for implementations that support expiry.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)

	// TryLock is like Lock but returns ErrLockHeld instead of waiting.
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
