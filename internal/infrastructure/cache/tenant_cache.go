package cache

import (
	"context"
	"errors"
	"fmt"
	"lending-backoffice/internal/domain/tenant"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Client is the part of *redis.Client the caches use.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Client = (*redis.Client)(nil)

type TenantRateCache struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ tenant.RateCache = (*TenantRateCache)(nil)

func NewTenantRateCache(client Client, ttl time.Duration, logger *slog.Logger) *TenantRateCache {
	return &TenantRateCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "tenantRateCache"),
	}
}

func penaltyKey(tenantID int64) string {
	return fmt.Sprintf("tenant:%d:penalty_roi", tenantID)
}

func (c *TenantRateCache) Get(ctx context.Context, tenantID int64) (decimal.Decimal, error) {
	raw, err := c.client.Get(ctx, penaltyKey(tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, tenant.ErrCacheMiss
		}
		return decimal.Zero, fmt.Errorf("redis get failed: %w", err)
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "Discarding unparseable cached penalty rate", "tenantID", tenantID, "value", raw)
		return decimal.Zero, tenant.ErrCacheMiss
	}
	return rate, nil
}

func (c *TenantRateCache) Set(ctx context.Context, tenantID int64, rate decimal.Decimal) error {
	if err := c.client.Set(ctx, penaltyKey(tenantID), rate.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *TenantRateCache) Invalidate(ctx context.Context, tenantID int64) error {
	if err := c.client.Del(ctx, penaltyKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
