package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oncotrack-ai/platform/pkg/common/logger"
	"github.com/oncotrack-ai/platform/pkg/common/models"
	"github.com/oncotrack-ai/platform/pkg/observability/metrics"
	"github.com/redis/go-redis/v9"
)

// Cache is the slice of the Redis client the rollup cache needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Service fronts the engine with a short-lived Redis cache for project
// rollups. The cache is optional (nil disables it) and best effort: any
// cache failure falls back to recomputing from the store.
type Service struct {
	engine *Engine
	cache  Cache
	ttl    time.Duration
}

func NewService(engine *Engine, cache Cache, ttl time.Duration) *Service {
	return &Service{engine: engine, cache: cache, ttl: ttl}
}

func rollupKey(projectID int64) string {
	return fmt.Sprintf("rollup:project:%d", projectID)
}

func (s *Service) ProjectSummary(ctx context.Context, projectID int64) (models.ProjectSummary, error) {
	key := rollupKey(projectID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached models.ProjectSummary
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.RollupCacheHits.Inc()
				return cached, nil
			}
		}
	}

	summary, err := s.engine.ProjectSummary(ctx, projectID)
	if err != nil {
		return models.ProjectSummary{}, err
	}
	metrics.RollupsComputed.Inc()

	if s.cache != nil && s.ttl > 0 {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
				logger.Log.WithError(err).WithField("project_id", projectID).Debug("failed to cache rollup")
			}
		}
	}

	return summary, nil
}

// InvalidateProject drops a project's cached rollup so the next summary
// request recomputes from the store. Registry mutations call this to keep
// the cache from serving stale subtrees for a full TTL.
func (s *Service) InvalidateProject(ctx context.Context, projectID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, rollupKey(projectID)).Err()
}

func (s *Service) LesionChange(ctx context.Context, lesionID int64) (models.LesionChange, error) {
	change, err := s.engine.LesionChange(ctx, lesionID)
	if err != nil {
		return models.LesionChange{}, err
	}
	metrics.ChangesComputed.Inc()
	return change, nil
}
