package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/sluice/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces lock keys.
const DefaultPrefix = "sluice:"

// unlockScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another run is never released by us.
var unlockScript = backend.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// extendScript resets the expiry only while the key still holds our token.
var extendScript = backend.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Locker implements ports.DistributedLocker using Redis SET NX PX.
// It is meant for cache roots shared between hosts. A held lock is renewed
// in the background until it is released, so the TTL only bounds how long a
// crashed holder blocks others.
type Locker struct {
	client        backend.UniversalClient
	prefix        string
	pollInterval  time.Duration
	renewInterval time.Duration
}

// Option configures a Locker.
type Option func(*Locker)

// WithPrefix sets the key prefix (default "sluice:").
func WithPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// WithPollInterval sets how often Lock retries while the lock is held.
func WithPollInterval(d time.Duration) Option {
	return func(l *Locker) {
		l.pollInterval = d
	}
}

// WithRenewInterval sets how often a held lock's TTL is reset (default a
// third of the TTL).
func WithRenewInterval(d time.Duration) Option {
	return func(l *Locker) {
		l.renewInterval = d
	}
}

// NewLocker creates a Redis locker on an existing client.
func NewLocker(client backend.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client:       client,
		prefix:       DefaultPrefix,
		pollInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLockerFromURL parses a redis:// URL and creates a locker on a new client.
func NewLockerFromURL(url string, opts ...Option) (*Locker, error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewLocker(backend.NewClient(options), opts...), nil
}

// Lock acquires the lock for key, polling until it is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		unlock, err := l.TryLock(ctx, key, ttl)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ports.ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryLock acquires the lock for key or returns ports.ErrLockHeld.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error acquiring lock: %w", err)
	}
	if !ok {
		return nil, ports.ErrLockHeld
	}

	renewCtx, stopRenew := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Go(func() { l.renew(renewCtx, lockKey, token, ttl) })

	var once sync.Once
	var unlockErr error
	return func(ctx context.Context) error {
		once.Do(func() {
			stopRenew()
			wg.Wait()
			unlockErr = unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
		})
		return unlockErr
	}, nil
}

// renew extends the lease on lockKey until ctx is done or the key no longer
// holds token. Failed renewals are retried on the next tick.
func (l *Locker) renew(ctx context.Context, lockKey, token string, ttl time.Duration) {
	every := l.renewInterval
	if every <= 0 {
		every = ttl / 3
	}
	if ttl <= 0 || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		held, err := extendScript.Run(ctx, l.client, []string{lockKey}, token, ttl.Milliseconds()).Int()
		if err == nil && held == 0 {
			return
		}
	}
}

// Close closes the underlying client.
func (l *Locker) Close() error {
	return l.client.Close()
}
