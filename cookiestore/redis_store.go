package cookiestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the cookies of each base URL as one JSON value with a TTL.
// Every Save refreshes the TTL.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store using prefix for its keys. A ttl of zero
// keeps values without expiry.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "sala:cookies"
	}
	return &RedisStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]Record, error) {
	data, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("cookiestore: decode redis value: %w", err)
	}
	return records, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, records []Record) error {
	if len(records) == 0 {
		return s.Clear(ctx, key)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("cookiestore: encode redis value: %w", err)
	}
	if err := s.redis.Set(ctx, s.redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
