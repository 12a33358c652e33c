package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errFlowRateLimited      = errors.New("flow rate limited")
	errFlowRedisUnavailable = errors.New("flow limiter redis unavailable")
)

// flowLimiter throttles request-heavy flows (registration verification,
// password reset) per identifier and per client IP using rolling Redis
// counters. Both scopes must pass.
type flowLimiter struct {
	redis             redis.UniversalClient
	prefix            string
	maxAttempts       int
	window            time.Duration
	identifierEnabled bool
	ipEnabled         bool
}

func newFlowLimiter(
	redisClient redis.UniversalClient,
	prefix string,
	maxAttempts int,
	window time.Duration,
	identifierEnabled, ipEnabled bool,
) *flowLimiter {
	return &flowLimiter{
		redis:             redisClient,
		prefix:            prefix,
		maxAttempts:       maxAttempts,
		window:            window,
		identifierEnabled: identifierEnabled,
		ipEnabled:         ipEnabled,
	}
}

// Enforce describes the enforce operation and its observable behavior.
//
// Enforce may return an error when input validation, dependency calls, or security checks fail.
// Enforce does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (l *flowLimiter) Enforce(ctx context.Context, identifier, ip string) error {
	if l.identifierEnabled && identifier != "" {
		if err := l.enforceKey(ctx, l.prefix+":id:"+identifier); err != nil {
			return err
		}
	}

	if l.ipEnabled && ip != "" {
		if err := l.enforceKey(ctx, l.prefix+":ip:"+ip); err != nil {
			return err
		}
	}

	return nil
}

func (l *flowLimiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errFlowRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", errFlowRedisUnavailable, err)
		}
	}

	if count > int64(l.maxAttempts) {
		return errFlowRateLimited
	}

	return nil
}
