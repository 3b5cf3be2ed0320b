// Package lock is a Redis mutual-exclusion helper with a fixed TTL.
package lock

import (
	"context"
	"fmt"
	"time"

	"notification-workers/internal/common/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires short-lived locks. A crashed holder's lock expires after its TTL.
type Locker struct {
	rdb    redis.Cmdable
	prefix string
}

func NewLocker(rdb redis.Cmdable, prefix string) *Locker {
	return &Locker{rdb: rdb, prefix: prefix}
}

// Lock is a held lock.
type Lock struct {
	key   string
	token string
	l     *Locker
}

// Acquire tries once. It returns a LOCK_NOT_ACQUIRED error on contention.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, errors.NewExternalServiceError("redis", fmt.Errorf("acquire lock %s: %w", full, err))
	}
	if !ok {
		return nil, errors.NewLockNotAcquiredError(full)
	}
	return &Lock{key: full, token: token, l: l}, nil
}

// Release frees the lock if it is still ours.
func (lk *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lk.l.rdb, []string{lk.key}, lk.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", lk.key, err)
	}
	return nil
}

// WithLock runs fn while holding key. On contention fn is not run and the
// LOCK_NOT_ACQUIRED error is returned.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lk, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		// release even if ctx was cancelled mid-section
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = lk.Release(releaseCtx)
	}()
	return fn(ctx)
}
