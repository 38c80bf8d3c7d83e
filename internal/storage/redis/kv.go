// Package redis implements the browse-history key-value store on Redis.
package redis

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/karolberezicki/Foundation/internal/domain/browse"
)

var _ browse.Store = (*KV)(nil)

// KV is a string key-value store backed by Redis. Values are written
// without expiry; TTL and eviction policy belong to the Redis deployment,
// not this library.
type KV struct {
	client *redis.Client
}

// New returns a KV over an already-configured client.
func New(client *redis.Client) *KV {
	return &KV{client: client}
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Get returns the value stored under key, or an empty string when the key
// does not exist.
func (kv *KV) Get(ctx context.Context, key string) (string, error) {
	val, err := kv.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", errors.Wrapf(err, "get %q", key)
	}
	return val, nil
}

// Set stores value under key.
func (kv *KV) Set(ctx context.Context, key, value string) error {
	if err := kv.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

// Ping verifies connectivity, for embedders wiring health checks.
func (kv *KV) Ping(ctx context.Context) error {
	return kv.client.Ping(ctx).Err()
}
