package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pans-scales-server/internal/domain"
)

const keyPrefix = "pans:result:"

// RedisCache stores score records as JSON in Redis.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

type cachedRecord struct {
	Record    *domain.ScoreRecord `json:"record"`
	CachedAt  time.Time           `json:"cached_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// NewRedisCache connects to the Redis server named by config.RedisURL.
func NewRedisCache(ctx context.Context, config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, defaultTTL time.Duration) *RedisCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &RedisCache{redis: client, defaultTTL: defaultTTL}
}

// Get returns the cached record for id. Corrupted or expired entries are
// removed and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, id string) (*domain.ScoreRecord, bool, error) {
	key := keyPrefix + id

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached result: %w", err)
	}

	var cached cachedRecord
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Record == nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Record, true, nil
}

// Set caches record for ttl, or for the default TTL when ttl is zero.
func (c *RedisCache) Set(ctx context.Context, record *domain.ScoreRecord, ttl time.Duration) error {
	if record == nil || record.ID == "" {
		return domain.NewValidationError("id", "record ID is required", nil)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	data, err := json.Marshal(cachedRecord{Record: record, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal cached result: %w", err)
	}
	return c.redis.Set(ctx, keyPrefix+record.ID, data, ttl).Err()
}

// Delete removes id from the cache.
func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.redis.Del(ctx, keyPrefix+id).Err()
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
