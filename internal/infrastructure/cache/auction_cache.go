package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/renewcycle/materials-exchange-backend/internal/domain/auction"
)

// AuctionCache is a Redis-backed snapshot cache for hot auction reads. All
// failures degrade to a miss; the database stays the source of truth and the
// short TTL bounds staleness from sweeper-driven transitions.
type AuctionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates the cache around an existing Redis client.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AuctionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AuctionCache{client: client, ttl: ttl, logger: logger}
}

func key(id uuid.UUID) string {
	return "auction:" + id.String()
}

// GetAuction returns the cached snapshot, or a miss on any error.
func (c *AuctionCache) GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, bool) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", zap.String("auction_id", id.String()), zap.Error(err))
		}
		return nil, false
	}

	var a auction.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", zap.String("auction_id", id.String()), zap.Error(err))
		c.client.Del(ctx, key(id))
		return nil, false
	}
	return &a, true
}

// SetAuction stores the snapshot with the configured TTL. Best effort.
func (c *AuctionCache) SetAuction(ctx context.Context, a *auction.Auction) {
	data, err := json.Marshal(a)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("auction_id", a.ID.String()), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key(a.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("auction_id", a.ID.String()), zap.Error(err))
	}
}

// Invalidate drops the snapshot after a mutation.
func (c *AuctionCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", zap.String("auction_id", id.String()), zap.Error(err))
	}
}
