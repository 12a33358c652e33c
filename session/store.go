package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is an exported constant or variable used by the credential core.
var ErrNotFound = errors.New("session not found")

// ErrUnavailable is an exported constant or variable used by the credential core.
var ErrUnavailable = errors.New("session backend unavailable")

// Store is a Redis-backed session store. The Redis TTL is the idle window:
// every successful Get slides it forward, so a session whose key survives
// is by definition not idle-expired. The absolute lifetime is enforced
// separately from the AbsoluteExpiry stamp inside the record.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

// Save persists a [Session] with the idle window as its TTL and indexes
// it under the owning account.
func (s *Store) Save(ctx context.Context, sess *Session, idleWindow time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	absoluteTTL := time.Until(time.Unix(sess.AbsoluteExpiry, 0))
	if absoluteTTL <= 0 {
		return errors.New("session absolute expiry is in the past")
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, idleWindow)
		pipe.SAdd(ctx, s.accountKey(sess.AccountID), sess.SessionID)
		pipe.Expire(ctx, s.accountKey(sess.AccountID), absoluteTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Get retrieves a session and slides its idle window forward. A key that
// has already fallen out of Redis is an idle-expired session; a key whose
// record is past its absolute expiry is deleted on sight. Both report
// [ErrNotFound].
func (s *Store) Get(ctx context.Context, sessionID string, idleWindow time.Duration) (*Session, error) {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	now := time.Now()
	if now.Unix() >= sess.AbsoluteExpiry {
		if err := s.deleteSessionAndIndex(ctx, sess.AccountID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	sess.LastSeenAt = now.Unix()
	updated, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	nextTTL := idleWindow
	if remaining := time.Until(time.Unix(sess.AbsoluteExpiry, 0)); remaining < nextTTL {
		nextTTL = remaining
	}
	if err := s.redis.Set(ctx, key, updated, nextTTL).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return sess, nil
}

// Delete removes a single session and its account-index entry. Deleting a
// session that no longer exists is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// Corrupt record: still remove the key.
		if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, delErr)
		}
		return nil
	}

	return s.deleteSessionAndIndex(ctx, sess.AccountID, sessionID)
}

// DeleteAllForAccount removes every indexed session for an account.
//
// ATOMICITY NOTE: the read of the index set and the deletion pipeline are
// two steps. A session created between them survives this call; it will
// either expire on its own idle window or be caught by the next
// DeleteAllForAccount. Token-version revocation makes the stray session
// unusable in the meantime, which is why this race is acceptable here.
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID string) error {
	accountKey := s.accountKey(accountID)

	sessionIDs, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sessionID := range sessionIDs {
			pipe.Del(ctx, s.key(sessionID))
		}
		pipe.Del(ctx, accountKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// ActiveCount returns the number of indexed sessions for an account.
// The index can over-count sessions that idle-expired since their last
// touch; callers treat the value as advisory.
func (s *Store) ActiveCount(ctx context.Context, accountID string) (int, error) {
	n, err := s.redis.SCard(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, accountID, sessionID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.accountKey(accountID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
