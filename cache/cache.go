// Package cache provides a TTL cache with a bounded in-memory path and an
// optional persistent store.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/researchaccelerator-hub/channel-aggregator/metrics"
	"github.com/rs/zerolog/log"
)

// KeyPrefix namespaces every key written to a persistent store.
const KeyPrefix = "cache_"

// Config controls a cache instance.
type Config struct {
	// Name labels log lines and metrics.
	Name string
	// TTL is the default time-to-live used by Set.
	TTL time.Duration
	// MaxSize bounds the in-memory path. Zero or less means 100.
	MaxSize int
}

// DefaultConfig returns a 5 minute, 100 entry configuration.
func DefaultConfig(name string) Config {
	return Config{Name: name, TTL: 5 * time.Minute, MaxSize: 100}
}

// Entry is a cached value with its timestamps.
type Entry[T any] struct {
	Value     T         `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (e Entry[T]) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Cache is a TTL cache. When a Store is configured, entries live in the
// store under "cache_<key>"; store failures are logged and the call falls
// back to the in-memory path instead of failing. Cache is safe for
// concurrent use.
//
// The in-memory path is an LRU that is only read with Peek, so recency is
// insertion order and a full cache drops the oldest written entry.
type Cache[T any] struct {
	cfg   Config
	store Store
	now   func() time.Time
	// mu serializes check-then-remove sequences on memory.
	mu     sync.Mutex
	memory *lru.Cache[string, Entry[T]]
}

// New creates a cache. store may be nil for a purely in-memory cache.
func New[T any](cfg Config, store Store) *Cache[T] {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	// lru.New only fails for a non-positive size, ruled out above.
	memory, _ := lru.New[string, Entry[T]](cfg.MaxSize)
	return &Cache[T]{
		cfg:    cfg,
		store:  store,
		now:    time.Now,
		memory: memory,
	}
}

// Name returns the configured cache name.
func (c *Cache[T]) Name() string {
	return c.cfg.Name
}

// Get returns the value stored under key if it exists and has not expired.
// Expired entries are removed as they are encountered.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	if value, ok := c.getStored(ctx, key); ok {
		metrics.CacheLookups.WithLabelValues(c.cfg.Name, "hit").Inc()
		return value, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	entry, ok := c.memory.Peek(key)
	if !ok {
		metrics.CacheLookups.WithLabelValues(c.cfg.Name, "miss").Inc()
		return zero, false
	}
	if entry.expired(c.now()) {
		c.memory.Remove(key)
		metrics.CacheLookups.WithLabelValues(c.cfg.Name, "miss").Inc()
		return zero, false
	}
	metrics.CacheLookups.WithLabelValues(c.cfg.Name, "hit").Inc()
	return entry.Value, true
}

// Set stores value under key with the default TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) {
	c.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores value under key, expiring after ttl. A non-positive ttl
// uses the default.
func (c *Cache[T]) SetWithTTL(ctx context.Context, key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}
	now := c.now()
	entry := Entry[T]{Value: value, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	if c.store != nil {
		data, err := json.Marshal(entry)
		if err == nil {
			err = c.store.Set(ctx, KeyPrefix+key, data)
		}
		if err == nil {
			return
		}
		c.storeFailed("set", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Remove first so an overwrite moves the key to the newest position
	// without counting as an eviction.
	c.memory.Remove(key)
	if evicted := c.memory.Add(key, entry); evicted {
		metrics.CacheEvictions.WithLabelValues(c.cfg.Name).Inc()
	}
}

// Delete removes key.
func (c *Cache[T]) Delete(ctx context.Context, key string) {
	if c.store != nil {
		if err := c.store.Delete(ctx, KeyPrefix+key); err != nil {
			c.storeFailed("delete", key, err)
		}
	}

	c.mu.Lock()
	c.memory.Remove(key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[T]) Clear(ctx context.Context) {
	if c.store != nil {
		keys, err := c.store.Keys(ctx)
		if err != nil {
			c.storeFailed("keys", "", err)
		}
		for _, key := range keys {
			if err := c.store.Delete(ctx, key); err != nil {
				c.storeFailed("delete", key, err)
			}
		}
	}

	c.mu.Lock()
	c.memory.Purge()
	c.mu.Unlock()
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache[T]) Cleanup(ctx context.Context) int {
	now := c.now()
	removed := 0

	if c.store != nil {
		keys, err := c.store.Keys(ctx)
		if err != nil {
			c.storeFailed("keys", "", err)
		}
		for _, key := range keys {
			entry, ok, err := c.loadStored(ctx, key)
			if err == nil && (!ok || !entry.expired(now)) {
				continue
			}
			if err := c.store.Delete(ctx, key); err != nil {
				c.storeFailed("delete", key, err)
				continue
			}
			removed++
		}
	}

	c.mu.Lock()
	for _, key := range c.memory.Keys() {
		if entry, ok := c.memory.Peek(key); ok && entry.expired(now) {
			c.memory.Remove(key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		log.Debug().Str("cache", c.cfg.Name).Int("removed", removed).Msg("Cache cleanup")
	}
	return removed
}

// Size returns the number of entries held, expired or not.
func (c *Cache[T]) Size(ctx context.Context) int {
	size := 0
	if c.store != nil {
		keys, err := c.store.Keys(ctx)
		if err != nil {
			c.storeFailed("keys", "", err)
		}
		size = len(keys)
	}

	return size + c.memory.Len()
}

// Close releases the persistent store, if any.
func (c *Cache[T]) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Cache[T]) getStored(ctx context.Context, key string) (T, bool) {
	var zero T
	if c.store == nil {
		return zero, false
	}

	entry, ok, err := c.loadStored(ctx, KeyPrefix+key)
	if err != nil {
		c.storeFailed("get", key, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	if entry.expired(c.now()) {
		if err := c.store.Delete(ctx, KeyPrefix+key); err != nil {
			c.storeFailed("delete", key, err)
		}
		return zero, false
	}
	return entry.Value, true
}

// loadStored reads and decodes a namespaced key. Undecodable data is reported
// as an error so callers can drop it.
func (c *Cache[T]) loadStored(ctx context.Context, storeKey string) (Entry[T], bool, error) {
	var entry Entry[T]
	data, ok, err := c.store.Get(ctx, storeKey)
	if err != nil || !ok {
		return entry, false, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, false, err
	}
	return entry, true, nil
}

func (c *Cache[T]) storeFailed(op, key string, err error) {
	metrics.StoreErrors.WithLabelValues(c.cfg.Name, op).Inc()
	log.Warn().Err(err).Str("cache", c.cfg.Name).Str("op", op).Str("key", key).Msg("Cache store operation failed")
}
