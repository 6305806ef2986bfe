package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// KVStore abstracts the persistent cache. Values are written whole; SetBatch
// is transactional.
type KVStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	SetBatch(ctx context.Context, entries map[string]interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the persistent cache with metrics and logging.
type CacheService struct {
	store   KVStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCacheService constructs a cache service.
func NewCacheService(store KVStore, metrics *MetricsService, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, logger: logger}
}

// Get loads key into dest. It returns false without error when the key is absent.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	start := time.Now()
	err := s.store.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordStoreRead(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("store get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordStoreRead(true, duration)
	return true, nil
}

// Set replaces the value of one entity.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	start := time.Now()
	err := s.store.Set(ctx, key, value)
	s.metrics.ObserveStoreWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("store set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// SetBatch writes several entities atomically.
func (s *CacheService) SetBatch(ctx context.Context, entries map[string]interface{}) error {
	if len(entries) == 0 {
		return nil
	}
	start := time.Now()
	err := s.store.SetBatch(ctx, entries)
	s.metrics.ObserveStoreWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("store batch failed", zap.Int("keys", len(entries)), zap.Error(err))
	}
	return err
}

// Delete removes individual entities.
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.logger.Warn("store delete failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}

// Purge drops every key matching pattern.
func (s *CacheService) Purge(ctx context.Context, pattern string) error {
	if err := s.store.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("store purge failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	s.logger.Info("store purged", zap.String("pattern", pattern))
	return nil
}
