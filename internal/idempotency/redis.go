package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sales:idempotency:"

// RedisStore shares idempotency keys between replicas. Values are
// "<fingerprint>|<sale id>", with an empty sale id while in flight.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string) (string, error) {
	k := keyPrefix + key
	// A second attempt covers a key that expired between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.rdb.SetNX(ctx, k, fingerprint+"|", s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return "", nil
		}

		val, err := s.rdb.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read idempotency key: %w", err)
		}

		stored, saleID, _ := strings.Cut(val, "|")
		if err := checkEntry(stored, fingerprint, saleID); err != nil {
			return "", err
		}
		return saleID, nil
	}
	return "", ErrInFlight
}

func (s *RedisStore) Complete(ctx context.Context, key, fingerprint, saleID string) error {
	return s.rdb.Set(ctx, keyPrefix+key, fingerprint+"|"+saleID, s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}
