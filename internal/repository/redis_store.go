package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// RedisStore persists engine entities as whole JSON values in Redis. Entries
// never expire; freshness is decided by the caller from LastComputed stamps.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore constructs a Redis backed store.
func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, logger: logger}
}

// Get retrieves and unmarshals the stored value into dest.
func (r *RedisStore) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal value for %s: %w", key, err)
	}
	return nil
}

// Set replaces the value stored under key.
func (r *RedisStore) Set(ctx context.Context, key string, value interface{}) error {
	if r.client == nil {
		return fmt.Errorf("redis set %s: store not connected", key)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetBatch writes every entry inside one MULTI/EXEC transaction. Values are
// marshalled up front so an encoding failure writes nothing.
func (r *RedisStore) SetBatch(ctx context.Context, entries map[string]interface{}) error {
	if len(entries) == 0 {
		return nil
	}
	if r.client == nil {
		return fmt.Errorf("redis batch: store not connected")
	}

	payloads := make(map[string][]byte, len(entries))
	for key, value := range entries {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal value for %s: %w", key, err)
		}
		payloads[key] = payload
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, payload := range payloads {
			pipe.Set(ctx, key, payload, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis batch of %d keys: %w", len(payloads), err)
	}
	r.logger.Debug("redis batch written", zap.Int("keys", len(payloads)))
	return nil
}

// Delete removes the given keys in one round trip.
func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete %d keys: %w", len(keys), err)
	}
	return nil
}

// DeleteByPattern removes every key matching pattern.
func (r *RedisStore) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisStore) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
