package xp

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/models"
)

// LeaderboardKey is the Redis hash holding cached leaderboard pages by limit.
const LeaderboardKey = "xp:leaderboard"

// LeaderboardSource is the authoritative leaderboard query.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// LeaderboardCache is a read-through Redis cache in front of the ledger. Redis
// errors fall through to the source; the cache is never required for correctness.
type LeaderboardCache struct {
	source LeaderboardSource
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLeaderboardCache creates a cache. A nil client disables caching.
func NewLeaderboardCache(source LeaderboardSource, client *redis.Client, ttl time.Duration, logger *zap.Logger) *LeaderboardCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaderboardCache{source: source, client: client, ttl: ttl, logger: logger}
}

// Leaderboard returns the cached page for limit, loading it on a miss.
func (c *LeaderboardCache) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	limit = ClampLimit(limit)
	if c.client == nil {
		return c.source.Leaderboard(ctx, limit)
	}
	field := strconv.Itoa(limit)

	raw, err := c.client.HGet(ctx, LeaderboardKey, field).Bytes()
	switch {
	case err == nil:
		var list []models.LeaderboardEntry
		if jerr := json.Unmarshal(raw, &list); jerr == nil {
			return list, nil
		}
		c.logger.Warn("discarding corrupt leaderboard cache entry", zap.Int("limit", limit))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("leaderboard cache read failed", zap.Error(err))
	}

	list, err := c.source.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	if body, err := json.Marshal(list); err == nil {
		pipe := c.client.TxPipeline()
		pipe.HSet(ctx, LeaderboardKey, field, body)
		pipe.Expire(ctx, LeaderboardKey, c.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			c.logger.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}
	return list, nil
}

// Invalidate drops every cached page. Called after an award changes totals.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, LeaderboardKey).Err(); err != nil {
		c.logger.Warn("leaderboard cache invalidate failed", zap.Error(err))
	}
}
