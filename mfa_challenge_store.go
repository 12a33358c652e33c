package authcore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeKeyPrefix     = "amc"
	challengeRecordVersion = 1
)

var (
	errChallengeNotFound = errors.New("login challenge not found")
	errChallengeExpired  = errors.New("login challenge expired")
	errChallengeBackend  = errors.New("login challenge backend unavailable")
)

// loginChallenge is the Redis record behind a pending second-factor
// login. The primary password check already passed; the challenge token
// proves it when the code arrives.
type loginChallenge struct {
	AccountID string
	ExpiresAt int64
	Attempts  uint16
}

type loginChallengeStore struct {
	redis redis.UniversalClient
}

func newLoginChallengeStore(redisClient redis.UniversalClient) *loginChallengeStore {
	return &loginChallengeStore{redis: redisClient}
}

func (s *loginChallengeStore) key(challengeID string) string {
	return challengeKeyPrefix + ":" + challengeID
}

func (s *loginChallengeStore) Save(
	ctx context.Context,
	challengeID string,
	record *loginChallenge,
	ttl time.Duration,
) error {
	encoded, err := encodeLoginChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return nil
}

func (s *loginChallengeStore) Get(ctx context.Context, challengeID string) (*loginChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}

	record, err := decodeLoginChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, errChallengeExpired
	}
	return record, nil
}

// Delete removes a challenge and reports whether it existed. Success
// paths use the returned bool as the single-use guard: only the caller
// that actually deleted the record may mint a session.
func (s *loginChallengeStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure bumps the attempt counter under WATCH so concurrent
// failures cannot lose increments. When the counter reaches maxAttempts
// the challenge is destroyed and exceeded=true is returned.
func (s *loginChallengeStore) RecordFailure(
	ctx context.Context,
	challengeID string,
	maxAttempts int,
) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeLoginChallenge(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errChallengeExpired
			}

			record.Attempts++
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return nil
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errChallengeExpired
			}

			updated, err := encodeLoginChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, errChallengeNotFound
			}
			if errors.Is(err, errChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", errChallengeBackend, err)
		}
		return exceeded, nil
	}

	return false, errChallengeNotFound
}

func encodeLoginChallenge(record *loginChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.AccountID) > 65535 {
		return nil, errors.New("login challenge id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.AccountID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.AccountID)

	return buf.Bytes(), nil
}

func decodeLoginChallenge(data []byte) (*loginChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion {
		return nil, errors.New("invalid login challenge version")
	}

	record := &loginChallenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var accountLen uint16
	if err := binary.Read(reader, binary.BigEndian, &accountLen); err != nil {
		return nil, err
	}
	account := make([]byte, accountLen)
	if _, err := io.ReadFull(reader, account); err != nil {
		return nil, err
	}
	record.AccountID = string(account)

	return record, nil
}
