/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for hot lookups on the
// overlay handshake and ingest paths. The service runs fine without Redis;
// every method degrades to a miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultOverlayClientTTL = 5 * time.Minute
	DefaultGuildPolicyTTL   = 10 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyOverlayClient = "skald:cache:overlay_client:" // + token hash
	KeyGuildPolicy   = "skald:cache:guild_policy:"   // + guild_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	OverlayClientTTL time.Duration
	GuildPolicyTTL   time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:        "localhost:6379",
		OverlayClientTTL: DefaultOverlayClientTTL,
		GuildPolicyTTL:   DefaultGuildPolicyTTL,
		DisableOnError:   true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. A missing Redis is downgraded to a
// disabled cache, never an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Disabled returns a cache that always misses. Used when no Redis address is
// configured.
func Disabled(logger zerolog.Logger) *Cache {
	return &Cache{
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   DefaultConfig(),
		disabled: true,
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// CachedOverlayClient is the subset of an overlay client needed to admit a
// websocket handshake.
type CachedOverlayClient struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Label   string `json:"label"`
}

// GetOverlayClient retrieves a cached overlay client by token hash.
func (c *Cache) GetOverlayClient(ctx context.Context, tokenHash string) (*CachedOverlayClient, bool) {
	var client CachedOverlayClient
	found, err := c.get(ctx, KeyOverlayClient+tokenHash, &client)
	if err != nil || !found {
		return nil, false
	}
	return &client, true
}

// SetOverlayClient caches an overlay client lookup.
func (c *Cache) SetOverlayClient(ctx context.Context, tokenHash string, client CachedOverlayClient) {
	_ = c.set(ctx, KeyOverlayClient+tokenHash, client, c.config.OverlayClientTTL)
}

// InvalidateOverlayClient drops a cached overlay client, used on revocation.
func (c *Cache) InvalidateOverlayClient(ctx context.Context, tokenHash string) {
	_ = c.delete(ctx, KeyOverlayClient+tokenHash)
}

// CachedGuildPolicy is the per-guild ingest policy.
type CachedGuildPolicy struct {
	DefaultMediaTime int  `json:"default_media_time"`
	MaxMediaTime     *int `json:"max_media_time,omitempty"`
	ShowTextDefault  bool `json:"show_text_default"`
}

// GetGuildPolicy retrieves a cached guild policy.
func (c *Cache) GetGuildPolicy(ctx context.Context, guildID string) (*CachedGuildPolicy, bool) {
	var policy CachedGuildPolicy
	found, err := c.get(ctx, KeyGuildPolicy+guildID, &policy)
	if err != nil || !found {
		return nil, false
	}
	return &policy, true
}

// SetGuildPolicy caches a guild policy.
func (c *Cache) SetGuildPolicy(ctx context.Context, guildID string, policy CachedGuildPolicy) {
	_ = c.set(ctx, KeyGuildPolicy+guildID, policy, c.config.GuildPolicyTTL)
}

// InvalidateGuildPolicy drops a cached guild policy.
func (c *Cache) InvalidateGuildPolicy(ctx context.Context, guildID string) {
	_ = c.delete(ctx, KeyGuildPolicy+guildID)
}
