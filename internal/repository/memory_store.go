package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// MemoryStore is an in-process store with the same whole-value semantics as
// RedisStore. Values are kept as JSON so readers never share memory with writers.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	raw, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal value for %s: %w", key, err)
	}
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetBatch(ctx, map[string]interface{}{key: value})
}

// SetBatch applies all entries under one lock or none of them.
func (s *MemoryStore) SetBatch(ctx context.Context, entries map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payloads := make(map[string][]byte, len(entries))
	for key, value := range entries {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal value for %s: %w", key, err)
		}
		payloads[key] = payload
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, payload := range payloads {
		s.entries[key] = payload
	}
	return nil
}

// Delete removes the given keys. Absent keys are ignored.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// DeleteByPattern removes keys matching a glob pattern.
func (s *MemoryStore) DeleteByPattern(ctx context.Context, pattern string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match pattern %s: %w", pattern, err)
		}
		if ok {
			delete(s.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }
