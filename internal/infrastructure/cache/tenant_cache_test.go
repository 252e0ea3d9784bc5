package cache

import (
	"context"
	"errors"
	"io"
	"lending-backoffice/internal/domain/tenant"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return m.Called(ctx, key).Get(0).(*redis.StringCmd)
}

func (m *MockClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	return m.Called(ctx, key, value, expiration).Get(0).(*redis.StatusCmd)
}

func (m *MockClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return m.Called(ctx, keys).Get(0).(*redis.IntCmd)
}

func setupCache() (*MockClient, *TenantRateCache) {
	client := new(MockClient)
	return client, NewTenantRateCache(client, 10*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTenantRateCache_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		client, c := setupCache()
		client.On("Get", ctx, "tenant:4:penalty_roi").Return(redis.NewStringResult("2.5", nil)).Once()

		rate, err := c.Get(ctx, 4)

		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("2.5")))
	})

	t.Run("miss", func(t *testing.T) {
		client, c := setupCache()
		client.On("Get", ctx, "tenant:4:penalty_roi").Return(redis.NewStringResult("", redis.Nil)).Once()

		_, err := c.Get(ctx, 4)

		assert.ErrorIs(t, err, tenant.ErrCacheMiss)
	})

	t.Run("garbage is treated as a miss", func(t *testing.T) {
		client, c := setupCache()
		client.On("Get", ctx, "tenant:4:penalty_roi").Return(redis.NewStringResult("abc", nil)).Once()

		_, err := c.Get(ctx, 4)

		assert.ErrorIs(t, err, tenant.ErrCacheMiss)
	})

	t.Run("connection failure", func(t *testing.T) {
		client, c := setupCache()
		client.On("Get", ctx, "tenant:4:penalty_roi").Return(redis.NewStringResult("", errors.New("dial tcp: refused"))).Once()

		_, err := c.Get(ctx, 4)

		assert.ErrorContains(t, err, "redis get failed")
		assert.NotErrorIs(t, err, tenant.ErrCacheMiss)
	})
}

func TestTenantRateCache_SetAndInvalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("set stores the decimal string with the ttl", func(t *testing.T) {
		client, c := setupCache()
		client.On("Set", ctx, "tenant:4:penalty_roi", "1.25", 10*time.Minute).Return(redis.NewStatusResult("OK", nil)).Once()

		assert.NoError(t, c.Set(ctx, 4, decimal.RequireFromString("1.25")))
		client.AssertExpectations(t)
	})

	t.Run("set failure", func(t *testing.T) {
		client, c := setupCache()
		client.On("Set", ctx, "tenant:4:penalty_roi", "1.25", 10*time.Minute).Return(redis.NewStatusResult("", errors.New("readonly"))).Once()

		assert.ErrorContains(t, c.Set(ctx, 4, decimal.RequireFromString("1.25")), "redis set failed")
	})

	t.Run("invalidate deletes the key", func(t *testing.T) {
		client, c := setupCache()
		client.On("Del", ctx, []string{"tenant:4:penalty_roi"}).Return(redis.NewIntResult(1, nil)).Once()

		assert.NoError(t, c.Invalidate(ctx, 4))
		client.AssertExpectations(t)
	})
}
