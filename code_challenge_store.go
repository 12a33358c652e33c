package authcore

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	verificationKeyPrefix  = "apv"
	resetKeyPrefix         = "apr"
	codeChallengeVersionV1 = 1
)

var (
	errCodeChallengeNotFound         = errors.New("code challenge not found")
	errCodeChallengeSecretMismatch   = errors.New("code challenge secret mismatch")
	errCodeChallengeAttemptsExceeded = errors.New("code challenge attempts exceeded")
	errCodeChallengeRedisUnavailable = errors.New("code challenge redis unavailable")
)

// codeChallengeRecord backs a mailed one-time code: registration
// verification and password reset both use it. Only the SHA-256 of the
// code is stored.
type codeChallengeRecord struct {
	AccountID  string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
}

// codeChallengeStore holds mailed-code challenges in Redis under a
// per-flow key prefix. Consume is the single verification entry point:
// it compares in constant time, counts failures, and destroys the
// record on success, expiry, or attempt exhaustion inside one WATCH
// transaction.
type codeChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newCodeChallengeStore(redisClient redis.UniversalClient, prefix string) *codeChallengeStore {
	return &codeChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *codeChallengeStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *codeChallengeStore) Save(
	ctx context.Context,
	challengeID string,
	record *codeChallengeRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeCodeChallengeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCodeChallengeRedisUnavailable, err)
	}

	return nil
}

// Consume describes the consume operation and its observable behavior.
//
// Consume may return an error when input validation, dependency calls, or security checks fail.
// Consume does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *codeChallengeStore) Consume(
	ctx context.Context,
	challengeID string,
	providedHash [32]byte,
	maxAttempts int,
) (*codeChallengeRecord, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var matched *codeChallengeRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeCodeChallengeRecord(data)
			if err != nil {
				return err
			}

			now := time.Now()
			if now.Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errCodeChallengeNotFound
			}

			if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errCodeChallengeAttemptsExceeded
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
					return errCodeChallengeNotFound
				}

				updated, err := encodeCodeChallengeRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errCodeChallengeSecretMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, errCodeChallengeNotFound
			case errors.Is(err, errCodeChallengeNotFound),
				errors.Is(err, errCodeChallengeSecretMismatch),
				errors.Is(err, errCodeChallengeAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", errCodeChallengeRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, errCodeChallengeNotFound
}

// Drop removes a challenge without consuming it. Used to roll back when
// notification delivery fails after the record was written.
func (s *codeChallengeStore) Drop(ctx context.Context, challengeID string) error {
	if err := s.redis.Del(ctx, s.key(challengeID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCodeChallengeRedisUnavailable, err)
	}
	return nil
}

func encodeCodeChallengeRecord(record *codeChallengeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeChallengeVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.AccountID) > 65535 {
		return nil, errors.New("code challenge account id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.AccountID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.AccountID)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeCodeChallengeRecord(data []byte) (*codeChallengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeChallengeVersionV1 {
		return nil, errors.New("invalid code challenge record version")
	}

	record := &codeChallengeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var accountIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &accountIDLen); err != nil {
		return nil, err
	}

	accountID := make([]byte, accountIDLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, err
	}
	record.AccountID = string(accountID)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
