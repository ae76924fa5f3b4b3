package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const menuCacheKey = "menu:all"

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// MenuSource is anything that can list the menu.
type MenuSource interface {
	Menu(ctx context.Context) ([]models.MenuItem, error)
}

// CachedMenu serves the menu from Redis and falls back to the source on a
// miss or when Redis is unavailable.
type CachedMenu struct {
	source MenuSource
	redis  *RedisRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedMenu(source MenuSource, redis *RedisRepository, ttl time.Duration, logger *zap.Logger) *CachedMenu {
	return &CachedMenu{source: source, redis: redis, ttl: ttl, logger: logger}
}

func (c *CachedMenu) Menu(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := c.redis.GetJSON(ctx, menuCacheKey, &items)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Menu cache read failed", zap.Error(err))
	}

	items, err = c.source.Menu(ctx)
	if err != nil {
		return nil, err
	}

	// Cache in Redis
	if err := c.redis.SetJSON(ctx, menuCacheKey, items, c.ttl); err != nil {
		c.logger.Warn("Menu cache write failed", zap.Error(err))
	}
	return items, nil
}

// Invalidate drops the cached menu so the next read goes to the source.
func (c *CachedMenu) Invalidate(ctx context.Context) error {
	return c.redis.Del(ctx, menuCacheKey)
}
