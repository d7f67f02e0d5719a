// Package redislock guards scheduled jobs with a Redlock mutex so only one
// scheduler replica runs a given job at a time.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrNotAcquired means another holder has the lock. Redis being unreachable
// is reported as a plain error instead.
var ErrNotAcquired = errors.New("lock held by another process")

type Locker struct {
	rs     *redsync.Redsync
	Expiry time.Duration
	Prefix string
}

func New(rdb *redis.Client, expiry time.Duration) *Locker {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return &Locker{
		rs:     redsync.New(goredis.NewPool(rdb)),
		Expiry: expiry,
		Prefix: "lock:lending:",
	}
}

// WithLock runs fn while holding key. It does not wait: if the lock is taken
// it returns ErrNotAcquired without calling fn. Any other acquire failure is
// returned as is and fn is not called either.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(l.Prefix+key,
		redsync.WithExpiry(l.Expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if isTaken(err) {
			return fmt.Errorf("%s: %w", key, ErrNotAcquired)
		}
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	defer func() {
		// unlock on a fresh context so a cancelled job still frees the key
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			log.Warn().Err(err).Str("lock", key).Msg("Failed to release lock")
		}
	}()
	return fn(ctx)
}

func isTaken(err error) bool {
	var taken *redsync.ErrTaken
	return errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed)
}
