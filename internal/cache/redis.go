// Package cache keeps short-lived state in Redis: pending passkey
// ceremonies, wallet address lookups and rate limit counters.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key the cache writes.
const DefaultNamespace = "keyport"

// Cache is a namespaced view over a Redis client.
type Cache struct {
	client    *redis.Client
	namespace string
	now       func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithNamespace overrides the key prefix, letting several deployments share
// one Redis database.
func WithNamespace(ns string) Option {
	return func(c *Cache) {
		c.namespace = strings.TrimSuffix(ns, ":")
	}
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewFromClient(client, opts...), nil
}

// NewFromClient wraps an existing Redis client.
func NewFromClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{client: client, namespace: DefaultNamespace, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) key(parts ...string) string {
	if c.namespace == "" {
		return strings.Join(parts, ":")
	}
	return c.namespace + ":" + strings.Join(parts, ":")
}
