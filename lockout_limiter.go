package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	errLockoutTripped          = errors.New("lockout threshold reached")
	errLockoutRedisUnavailable = errors.New("lockout redis unavailable")
)

// lockoutLimiter counts consecutive failed login attempts per email in a
// rolling Redis window. INCR and the threshold compare happen on the
// returned count, so two racing failures can never both observe a
// below-threshold value for the same slot. Crossing the threshold sets
// a dedicated lock key whose TTL is the lock duration, independent of
// how much of the counting window remains.
type lockoutLimiter struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

func newLockoutLimiter(redisClient redis.UniversalClient, cfg LockoutConfig) *lockoutLimiter {
	return &lockoutLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// RecordFailure registers one failed attempt and reports how many
// attempts remain before the lock trips. When this failure crosses the
// threshold, the lock key is set for the full lock duration and the
// call returns errLockoutTripped with zero remaining.
func (l *lockoutLimiter) RecordFailure(ctx context.Context, email string) (int, error) {
	key := lockoutCountKey(email)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
		}
	}

	if count >= int64(l.config.MaxAttempts) {
		if err := l.redis.Set(ctx, lockoutLockKey(email), 1, l.config.LockDuration).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
		}
		return 0, errLockoutTripped
	}

	remaining := l.config.MaxAttempts - int(count)
	return remaining, nil
}

// Locked reports whether a tripped lock is currently in force.
func (l *lockoutLimiter) Locked(ctx context.Context, email string) (bool, error) {
	n, err := l.redis.Exists(ctx, lockoutLockKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
	}
	return n > 0, nil
}

// Reset clears the failure counter and any lock after a successful
// authentication.
func (l *lockoutLimiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, lockoutCountKey(email), lockoutLockKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
	}
	return nil
}

func lockoutCountKey(email string) string {
	return "lockout:count:" + email
}

func lockoutLockKey(email string) string {
	return "lockout:lock:" + email
}
