package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "console:"

// RedisStore keeps each entry as a JSON blob. A zero ttl keeps keys forever.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now Clock
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, now Clock) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{rdb: rdb, ttl: ttl, now: now}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.rdb.Get(ctx, redisPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return &entry, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data interface{}) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	blob, err := json.Marshal(Entry{Data: encoded, Timestamp: s.now()})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisPrefix+key, blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, redisPrefix+key).Err()
}
