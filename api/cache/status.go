package cache

import (
	"context"
	"strconv"
	"time"

	"mediaconv/api/database"
	"mediaconv/api/models"
)

const (
	statusKeyPrefix   = "task:status:"
	progressKeyPrefix = "task:progress:"
	statusTTL         = 10 * time.Minute
)

type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func (sc *StatusCache) GetStatus(ctx context.Context, taskID string) (models.TaskStatus, error) {
	data, err := sc.cache.Get(ctx, statusKeyPrefix+taskID)
	if err != nil {
		return "", err
	}
	return models.TaskStatus(data), nil
}

func (sc *StatusCache) SetStatus(ctx context.Context, taskID string, status models.TaskStatus) error {
	return sc.cache.Set(ctx, statusKeyPrefix+taskID, string(status), statusTTL)
}

func (sc *StatusCache) GetProgress(ctx context.Context, taskID string) (int, error) {
	data, err := sc.cache.Get(ctx, progressKeyPrefix+taskID)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(data)
}

func (sc *StatusCache) SetProgress(ctx context.Context, taskID string, progress int) error {
	return sc.cache.Set(ctx, progressKeyPrefix+taskID, strconv.Itoa(progress), statusTTL)
}

func (sc *StatusCache) Delete(ctx context.Context, taskID string) error {
	return sc.cache.Del(ctx, statusKeyPrefix+taskID, progressKeyPrefix+taskID)
}
