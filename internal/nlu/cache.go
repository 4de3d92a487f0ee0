package nlu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/ir"
)

// Cache stores extracted intents by question fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) (*intent.StructuredIntent, bool, error)
	Set(ctx context.Context, key string, in *intent.StructuredIntent, ttl time.Duration) error
}

// CacheKeyPrefix namespaces intent entries in a shared store.
const CacheKeyPrefix = "intent:"

// RedisCache stores intents as JSON under "intent:<fingerprint>".
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr and checks the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

// Close closes the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*intent.StructuredIntent, bool, error) {
	data, err := c.client.Get(ctx, CacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached intent: %w", err)
	}
	in, err := DecodeIntent(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode cached intent: %w", err)
	}
	return in, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, in *intent.StructuredIntent, ttl time.Duration) error {
	data, err := EncodeIntent(in)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}
	if err := c.client.Set(ctx, CacheKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set cached intent: %w", err)
	}
	return nil
}

// MemoryCache is an in-process Cache. Entries are stored serialized so a
// caller cannot mutate a cached intent.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// NewMemoryCache creates an empty cache. now defaults to time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{now: now, entries: make(map[string]memoryEntry)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*intent.StructuredIntent, bool, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return nil, false, nil
	}
	in, err := DecodeIntent(e.data)
	if err != nil {
		return nil, false, err
	}
	return in, true, nil
}

// Set implements Cache. A zero ttl never expires.
func (c *MemoryCache) Set(_ context.Context, key string, in *intent.StructuredIntent, ttl time.Duration) error {
	data, err := EncodeIntent(in)
	if err != nil {
		return err
	}
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// CacheEvent reports what a CachedExtractor did for one question.
type CacheEvent string

const (
	CacheHit  CacheEvent = "hit"
	CacheMiss CacheEvent = "miss"
)

// CachedExtractor memoizes successful extractions. No-matches and errors
// are not cached so a transient provider failure is retried next time.
type CachedExtractor struct {
	Next   Extractor
	Cache  Cache
	TTL    time.Duration
	Logger *slog.Logger

	// OnLookup, if set, is called with the outcome of every cache lookup.
	OnLookup func(CacheEvent)
}

// Extract implements Extractor.
func (c *CachedExtractor) Extract(ctx context.Context, question string) (*intent.StructuredIntent, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := ir.QuestionFingerprint(question)

	in, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		// A broken cache must not take extraction down with it.
		logger.Warn("intent cache read failed", "error", err)
	}
	if ok {
		c.report(CacheHit)
		logger.Debug("intent cache hit", "key", key)
		return in, nil
	}
	c.report(CacheMiss)

	in, err = c.Next.Extract(ctx, question)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Set(ctx, key, in, c.TTL); err != nil {
		logger.Warn("intent cache write failed", "error", err)
	}
	return in, nil
}

func (c *CachedExtractor) report(e CacheEvent) {
	if c.OnLookup != nil {
		c.OnLookup(e)
	}
}
