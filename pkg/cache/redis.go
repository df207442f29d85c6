// Package cache is a thin instance-based wrapper around go-redis, used by
// the daemon for short-lived lookups that do not need the durability of
// the ledger store (e.g. the bolt12 offer-reuse fast path in
// internal/orchestrator).
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/puncture-ln/punctured/pkg/logger"
)

// Config describes how to dial Redis.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Cache wraps a *redis.Client with the small set of operations this
// daemon needs.
type Cache struct {
	client *redis.Client
}

// Connect dials Redis and verifies connectivity with a Ping.
func Connect(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Error("cache: failed to connect to redis", zap.Error(err))
		return nil, err
	}
	logger.Info("cache: connected to redis", zap.String("host", cfg.Host))
	return &Cache{client: client}, nil
}

// New wraps an already-constructed client (e.g. one shared with
// internal/eventbus).
func New(client *redis.Client) *Cache { return &Cache{client: client} }

// Client exposes the underlying *redis.Client, e.g. so it can be shared
// with internal/eventbus.New.
func (c *Cache) Client() *redis.Client { return c.client }

// Get returns "" with no error if key does not exist.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		logger.Error("cache: get failed", zap.String("key", key), zap.Error(err))
		return "", err
	}
	return val, nil
}

// Set stores value under key with the given expiration (0 = no expiry).
func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.client.Set(ctx, key, value, expiration).Err(); err != nil {
		logger.Error("cache: set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes keys, returning how many existed.
func (c *Cache) Delete(ctx context.Context, keys ...string) (int64, error) {
	res, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		logger.Error("cache: delete failed", zap.Strings("keys", keys), zap.Error(err))
		return 0, err
	}
	return res, nil
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	res, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		logger.Error("cache: exists check failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return res > 0, nil
}

// SetNX sets key only if absent, returning whether it set.
func (c *Cache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	set, err := c.client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		logger.Error("cache: setnx failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return set, nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
