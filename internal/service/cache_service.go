package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-library-views/internal/models"
	appErrors "github.com/noah-isme/sma-library-views/pkg/errors"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

const snapshotKeyPrefix = "views:snapshot:"

// SnapshotStore abstracts persistence for cached record snapshots.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, key string) ([]viewengine.Record, error)
	SetSnapshot(ctx context.Context, key string, records []viewengine.Record, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService caches record snapshots per source and scope.
type CacheService struct {
	store   SnapshotStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(store SnapshotStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.store != nil
}

// SnapshotKey builds the cache key of a source under scope.
func SnapshotKey(source string, scope models.RecordScope) string {
	return fmt.Sprintf("%s%s:%s", snapshotKeyPrefix, source, scope.Key())
}

// Get returns the cached snapshot and whether the cache was hit. Store
// failures are logged and reported as misses.
func (s *CacheService) Get(ctx context.Context, source string, scope models.RecordScope) ([]viewengine.Record, bool) {
	if !s.Enabled() {
		return nil, false
	}
	key := SnapshotKey(source, scope)
	start := time.Now()
	records, err := s.store.GetSnapshot(ctx, key)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("snapshot cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return records, true
}

// Set stores a snapshot.
func (s *CacheService) Set(ctx context.Context, source string, scope models.RecordScope, records []viewengine.Record) {
	if !s.Enabled() {
		return
	}
	key := SnapshotKey(source, scope)
	start := time.Now()
	err := s.store.SetSnapshot(ctx, key, records, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("snapshot cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached snapshot of source.
func (s *CacheService) Invalidate(ctx context.Context, source string) error {
	if !s.Enabled() {
		return nil
	}
	pattern := snapshotKeyPrefix + source + ":*"
	if err := s.store.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("snapshot cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}
