package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusTTL = 10 * time.Minute

type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (c *StatusCache) SetStatus(ctx context.Context, taskID string, status string) error {
	return c.client.Set(ctx, "task:status:"+taskID, status, statusTTL).Err()
}

func (c *StatusCache) SetProgress(ctx context.Context, taskID string, progress int) error {
	return c.client.Set(ctx, "task:progress:"+taskID, strconv.Itoa(progress), statusTTL).Err()
}
