package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lyzr/flowd/common/logger"
	"github.com/lyzr/flowd/common/redis"
	"github.com/lyzr/flowd/models"
)

const cacheKeyPrefix = "flowd:workflow:"

// DefinitionCache keeps recently-read workflows in Redis, keyed by
// name. The database stays the source of truth; every write path
// invalidates the entry.
type DefinitionCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewDefinitionCache creates a cache. A nil client disables caching.
func NewDefinitionCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *DefinitionCache {
	return &DefinitionCache{client: client, ttl: ttl, log: log}
}

// Get returns the cached workflow, or nil on miss or any cache error
func (c *DefinitionCache) Get(ctx context.Context, name string) *models.Workflow {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, cacheKeyPrefix+name)
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) {
			c.log.Warn("workflow cache read failed", "name", name, "error", err)
		}
		return nil
	}
	var workflow models.Workflow
	if err := json.Unmarshal([]byte(raw), &workflow); err != nil {
		c.log.Warn("workflow cache entry corrupt, dropping", "name", name, "error", err)
		_ = c.client.Delete(ctx, cacheKeyPrefix+name)
		return nil
	}
	return &workflow
}

// Put stores a workflow; failures are logged, not propagated
func (c *DefinitionCache) Put(ctx context.Context, workflow *models.Workflow) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(workflow)
	if err != nil {
		return
	}
	if err := c.client.SetWithExpiry(ctx, cacheKeyPrefix+workflow.Name, string(data), c.ttl); err != nil {
		c.log.Warn("workflow cache write failed", "name", workflow.Name, "error", err)
	}
}

// Invalidate drops a cache entry
func (c *DefinitionCache) Invalidate(ctx context.Context, name string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Delete(ctx, cacheKeyPrefix+name); err != nil {
		c.log.Warn("workflow cache invalidation failed", "name", name, "error", err)
	}
}
