package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefix for cached search results
const searchKeyPrefix = "search:"

// Counter bumped by InvalidateSearch. Kept outside searchKeyPrefix so the
// invalidation scan never deletes it.
const searchGenerationKey = "search-generation"

type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisCacheWithClient(client), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) GetSearchResult(ctx context.Context, key string) (*SearchResult, error) {
	data, err := c.client.Get(ctx, searchKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RedisCache) SetSearchResult(ctx context.Context, key string, result *SearchResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, searchKeyPrefix+key, data, ttl).Err()
}

func (c *RedisCache) SearchGeneration(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, searchGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// InvalidateSearch bumps the generation, then removes all cached search results
func (c *RedisCache) InvalidateSearch(ctx context.Context) error {
	if err := c.client.Incr(ctx, searchGenerationKey).Err(); err != nil {
		return err
	}

	iter := c.client.Scan(ctx, 0, searchKeyPrefix+"*", 100).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if count > 0 {
		_, err := pipe.Exec(ctx)
		return err
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
