package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// CachedTool wraps a search-style tool with a TTL result cache keyed by the
// parameter hash. Only successful results are cached; tool errors always
// pass through so a transient upstream fault is not pinned for the TTL.
type CachedTool struct {
	inner  interfaces.Tool
	cache  interfaces.CacheStorage
	ttl    time.Duration
	logger arbor.ILogger
}

// WithCache wraps a tool in the result cache. A nil cache or non-positive
// TTL returns the tool unwrapped, so disabling caching is a config change,
// not a wiring change.
func WithCache(inner interfaces.Tool, cache interfaces.CacheStorage, ttl time.Duration, logger arbor.ILogger) interfaces.Tool {
	if cache == nil || ttl <= 0 {
		return inner
	}
	return &CachedTool{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Name delegates to the wrapped tool
func (c *CachedTool) Name() string {
	return c.inner.Name()
}

// Descriptor delegates to the wrapped tool
func (c *CachedTool) Descriptor() models.ToolDescriptor {
	return c.inner.Descriptor()
}

// Execute serves from cache when possible, otherwise runs the wrapped tool
// and stores its result. Cache faults degrade to a plain tool call.
func (c *CachedTool) Execute(ctx context.Context, params map[string]interface{}) (*models.ToolResult, error) {
	key, err := cacheKey(c.inner.Name(), params)
	if err != nil {
		return c.inner.Execute(ctx, params)
	}

	if cached, err := c.cache.Get(ctx, key); err == nil {
		var result models.ToolResult
		if err := json.Unmarshal(cached, &result); err == nil {
			c.logger.Debug().
				Str("tool", c.inner.Name()).
				Str("key", key).
				Msg("Tool result served from cache")
			return &result, nil
		}
		// Unreadable entry: drop it and fall through to the tool
		_ = c.cache.Delete(ctx, key)
	} else if !errors.Is(err, interfaces.ErrKeyNotFound) {
		c.logger.Warn().
			Err(err).
			Str("tool", c.inner.Name()).
			Msg("Tool cache read failed")
	}

	result, err := c.inner.Execute(ctx, params)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, encoded, c.ttl); err != nil {
			c.logger.Warn().
				Err(err).
				Str("tool", c.inner.Name()).
				Msg("Tool cache write failed")
		}
	}
	return result, nil
}

// cacheKey hashes the tool name and parameters into a stable key. JSON
// marshaling sorts map keys, so equal parameter sets always hash alike.
func cacheKey(name string, params map[string]interface{}) (string, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(name+"\n"), encoded...))
	return "tool:" + hex.EncodeToString(sum[:]), nil
}
