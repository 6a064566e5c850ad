package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ihplabs/heatcast-go/internal/database"
	"github.com/ihplabs/heatcast-go/internal/models"
)

const contractKeyPrefix = "contract:"

// DefaultContractTTL bounds how long a cached contract lives. Contracts are
// immutable, so the TTL only limits memory held for retired models.
const DefaultContractTTL = 24 * time.Hour

// ContractCache is a read-through cache for feature contracts in front of
// the file store. Contracts are written once and never mutated, so a cache
// entry can never be stale, only absent.
type ContractCache struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewContractCache creates a contract cache over the given Redis client.
func NewContractCache(redisClient *database.RedisClient, logger *slog.Logger) *ContractCache {
	return &ContractCache{
		redis:  redisClient,
		ttl:    DefaultContractTTL,
		logger: logger,
	}
}

// Get returns the cached contract for a model, or false on a miss. Cache
// failures count as misses; the file store remains authoritative.
func (c *ContractCache) Get(ctx context.Context, modelID string) (*models.FeatureContract, bool) {
	payload, err := c.redis.Get(ctx, contractKeyPrefix+modelID)
	if err != nil {
		return nil, false
	}

	var contract models.FeatureContract
	if err := json.Unmarshal([]byte(payload), &contract); err != nil {
		c.logger.Warn("dropping unreadable cached contract", "model_id", modelID, "error", err.Error())
		c.Invalidate(ctx, modelID)
		return nil, false
	}
	return &contract, true
}

// Set caches a contract. Failures are logged and swallowed; the cache is an
// optimization, never a source of truth.
func (c *ContractCache) Set(ctx context.Context, contract models.FeatureContract) {
	payload, err := json.Marshal(contract)
	if err != nil {
		c.logger.Warn("failed to marshal contract for cache", "model_id", contract.ModelID, "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, contractKeyPrefix+contract.ModelID, payload, c.ttl); err != nil {
		c.logger.Warn("failed to cache contract", "model_id", contract.ModelID, "error", err.Error())
	}
}

// Invalidate drops a cached contract, used when its model is deleted.
func (c *ContractCache) Invalidate(ctx context.Context, modelID string) {
	if err := c.redis.Delete(ctx, contractKeyPrefix+modelID); err != nil {
		c.logger.Warn("failed to invalidate cached contract", "model_id", modelID, "error", err.Error())
	}
}
