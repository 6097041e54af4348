package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "tableside:idempotency:"

// RedisStore keeps records in redis with a TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	return &rec, nil
}

// Claim stores a pending record with SETNX. When the key is taken the held
// record is returned.
func (s *RedisStore) Claim(ctx context.Context, rec Record) (*Record, error) {
	rec.PaymentID = 0
	raw, err := s.encode(&rec)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, redisPrefix+rec.Key, raw, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}
		held, err := s.Get(ctx, rec.Key)
		if errors.Is(err, ErrNotFound) {
			// expired between SETNX and GET
			continue
		}
		return held, err
	}
	return nil, fmt.Errorf("failed to claim idempotency key %q", rec.Key)
}

// Put stores the finished record, replacing the claim.
func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	raw, err := s.encode(&rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisPrefix+rec.Key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}

// Release drops a pending claim. Finished records are kept.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	held, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !held.Pending() {
		return nil
	}
	if err := s.client.Del(ctx, redisPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) encode(rec *Record) ([]byte, error) {
	rec.CreatedAt = time.Now()
	if s.ttl > 0 {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	return raw, nil
}
