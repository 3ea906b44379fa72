package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/redis/go-redis/v9"
)

// BlockCache fronts the block registry's read path so the hot check stays
// bounded regardless of how many historical blocks exist. Implementations
// must be safe for concurrent use. Only positive results are cached, so a
// fresh manual block takes effect on the next request rather than after a
// TTL window.
type BlockCache interface {
	GetBlock(ctx context.Context, ipAddress string) (*models.BlockStatus, bool, error)
	SetBlock(ctx context.Context, ipAddress string, status *models.BlockStatus, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// RedisBlockCache implements BlockCache using go-redis/v9.
type RedisBlockCache struct {
	client *redis.Client
}

// NewRedisBlockCache creates a RedisBlockCache from a Redis URL.
func NewRedisBlockCache(redisURL string) (*RedisBlockCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisBlockCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisBlockCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBlockCache) GetBlock(ctx context.Context, ipAddress string) (*models.BlockStatus, bool, error) {
	val, err := c.client.Get(ctx, blockKey(ipAddress)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var status models.BlockStatus
	if err := json.Unmarshal(val, &status); err != nil {
		return nil, false, err
	}
	return &status, true, nil
}

func (c *RedisBlockCache) SetBlock(ctx context.Context, ipAddress string, status *models.BlockStatus, ttl time.Duration) error {
	val, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, blockKey(ipAddress), val, ttl).Err()
}

func blockKey(ipAddress string) string {
	return "block:" + ipAddress
}
