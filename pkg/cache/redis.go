package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Checker is the natural-key lookup a SeenKeyCache sits in front of
type Checker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// SeenKeyCache remembers keys already known to be stored, so reruns of an
// import answer most dedup lookups from Redis instead of the database.
// Only positive answers are cached; a miss always falls through to next.
type SeenKeyCache struct {
	client    *redis.Client
	next      Checker
	namespace string
	ttl       time.Duration
}

// NewRedisClient connects to Redis and verifies it with a ping
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewSeenKeyCache caches positive answers of next under prefix:namespace
func NewSeenKeyCache(client *redis.Client, prefix, namespace string, ttl time.Duration, next Checker) *SeenKeyCache {
	return &SeenKeyCache{
		client:    client,
		next:      next,
		namespace: fmt.Sprintf("%s:seen:%s", prefix, namespace),
		ttl:       ttl,
	}
}

// Exists answers from the cache first. Redis errors are not fatal: the lookup
// falls back to next as if the key were not cached.
func (c *SeenKeyCache) Exists(ctx context.Context, key string) (bool, error) {
	k := c.wrapKey(key)

	n, err := c.client.Exists(ctx, k).Result()
	if err == nil && n > 0 {
		return true, nil
	}

	exists, err := c.next.Exists(ctx, key)
	if err != nil || !exists {
		return exists, err
	}

	// best effort, the next lookup just goes to the database again
	_ = c.client.Set(ctx, k, 1, c.ttl).Err()
	return true, nil
}

// Remember marks keys as stored
func (c *SeenKeyCache) Remember(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, key := range keys {
		pipe.Set(ctx, c.wrapKey(key), 1, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *SeenKeyCache) wrapKey(key string) string {
	return c.namespace + ":" + key
}
