package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sto-gateway/internal/domain"
	"sto-gateway/internal/registry/metrics"
)

// CachedBuyerRegistry is a read-through Redis cache in front of a
// BuyerRegistry. Buyer records change rarely relative to admission checks, so
// a short TTL keeps compliance data fresh without hammering the source on
// every buy.
//
// Cache failures degrade to the source registry; a cold or broken cache must
// never reject a compliant buyer.
type CachedBuyerRegistry struct {
	source  BuyerRegistry
	rdb     *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCachedBuyerRegistry(source BuyerRegistry, rdb *redis.Client, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *CachedBuyerRegistry {
	return &CachedBuyerRegistry{
		source:  source,
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func buyerKey(ein domain.EIN) string {
	return fmt.Sprintf("sto:buyer:%d", ein)
}

func (c *CachedBuyerRegistry) GetBuyer(ctx context.Context, ein domain.EIN) (Buyer, error) {
	c.metrics.RecordLookup("buyer")

	if raw, err := c.rdb.Get(ctx, buyerKey(ein)).Bytes(); err == nil {
		var b Buyer
		if err := json.Unmarshal(raw, &b); err == nil {
			c.metrics.RecordHit("buyer")
			return b, nil
		}
		// Corrupt entry: drop it and refetch.
		_ = c.rdb.Del(ctx, buyerKey(ein)).Err()
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "buyer cache read failed", "ein", uint64(ein), "error", err)
	}

	c.metrics.RecordMiss("buyer")
	b, err := c.source.GetBuyer(ctx, ein)
	if err != nil {
		return Buyer{}, err
	}

	if raw, err := json.Marshal(b); err == nil {
		if err := c.rdb.Set(ctx, buyerKey(ein), raw, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "buyer cache write failed", "ein", uint64(ein), "error", err)
		}
	}
	return b, nil
}

// TokenRules passes through uncached; rules are read once per operation and
// owner edits must take effect immediately.
func (c *CachedBuyerRegistry) TokenRules(ctx context.Context, tokenID uuid.UUID) (TokenRules, error) {
	return c.source.TokenRules(ctx, tokenID)
}

// Invalidate removes a buyer's cached record, for use by status setters.
func (c *CachedBuyerRegistry) Invalidate(ctx context.Context, ein domain.EIN) error {
	return c.rdb.Del(ctx, buyerKey(ein)).Err()
}
