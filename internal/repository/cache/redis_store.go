package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"launchpad-backend/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore implements domain.KVStore on Redis. Expiry is delegated to
// Redis, so entries are shared across instances and survive restarts.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

func NewRedisStore(client *goredis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// maxUpdateRetries bounds optimistic retries when another writer keeps
// touching the same key.
const maxUpdateRetries = 100

// Update is an optimistic WATCH/MULTI loop: the write is discarded and
// retried when the key changed between the read and EXEC.
func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn func(string, bool) (string, error)) error {
	full := s.prefix + key
	var fnErr error

	txf := func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, full).Result()
		found := true
		if errors.Is(err, goredis.Nil) {
			current, found = "", false
		} else if err != nil {
			return err
		}

		next, err := fn(current, found)
		if err != nil {
			fnErr = err
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, full, next, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		fnErr = nil
		err := s.client.Watch(ctx, txf, full)
		switch {
		case err == nil:
			return nil
		case fnErr != nil:
			return fnErr
		case errors.Is(err, goredis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("redis update: %w", err)
		}
	}
	return fmt.Errorf("redis update %s: gave up after %d conflicting writes", key, maxUpdateRetries)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
