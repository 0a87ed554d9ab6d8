// Package generator calls an external text-generation service and memoizes
// its answers by prompt digest.
package generator

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/perbu/sitechat/pkg/telemetry"
)

// DefaultTimeout bounds one outbound generation call
const DefaultTimeout = 60 * time.Second

// Digest returns the cache key for a prompt.
func Digest(prompt string) string {
	return strconv.FormatUint(xxhash.Sum64String(prompt), 16)
}

// Cache answers prompts, calling the generator only for prompts it has not
// answered successfully before. Failed calls are never stored.
type Cache struct {
	gen     Generator
	store   Store
	timeout time.Duration
	logger  *slog.Logger
	metrics *telemetry.Metrics
	group   singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTimeout bounds each outbound call.
func WithTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache creates a cache in front of gen. A nil store uses an unbounded
// MemoryStore without expiry.
func NewCache(gen Generator, store Store, opts ...CacheOption) *Cache {
	if store == nil {
		store = NewMemoryStore(0, 0)
	}
	c := &Cache{
		gen:     gen,
		store:   store,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Answer returns the answer for prompt. Failures come back as
// SentinelKeyMissing or SentinelError and leave the cache untouched.
func (c *Cache) Answer(ctx context.Context, prompt string) string {
	key := Digest(prompt)

	if answer, ok := c.lookup(ctx, key); ok {
		return answer
	}

	// Concurrent misses on the same prompt share one call. It is detached from
	// the caller that started it; each caller only stops waiting on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.generate(shared, key, prompt), nil
	})

	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		c.logger.Debug("Caller gave up waiting for answer", "key", key, "error", ctx.Err())
		return SentinelError
	}
}

func (c *Cache) lookup(ctx context.Context, key string) (string, bool) {
	answer, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache lookup failed, treating as miss", "key", key, "error", err)
		ok = false
	}
	c.metrics.CacheLookup(ok)
	if ok {
		c.logger.Debug("Cache hit", "key", key)
	}
	return answer, ok
}

func (c *Cache) generate(ctx context.Context, key, prompt string) string {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	answer, err := c.gen.Generate(ctx, prompt)
	if errors.Is(err, ErrMissingKey) {
		c.metrics.Generated("missing_key")
		return SentinelKeyMissing
	}
	if err != nil {
		c.logger.Warn("Generation failed", "model", c.gen.ModelInfo(), "error", err)
		c.metrics.Generated("error")
		return SentinelError
	}

	c.metrics.Generated("ok")
	c.logger.Debug("Generated answer", "model", c.gen.ModelInfo(), "key", key, "duration", time.Since(started))

	if err := c.store.Set(ctx, key, answer); err != nil {
		c.logger.Warn("Cache store failed", "key", key, "error", err)
	}
	return answer
}
