package tenant

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrCacheMiss = errors.New("tenant cache miss")

type Repository interface {
	GetTenantByID(ctx context.Context, tenantID int64) (*Tenant, error)

	UpdatePenaltyROI(ctx context.Context, tenantID int64, rate decimal.Decimal) (*Tenant, error)
}

// RateCache holds resolved penalty rates. Get returns ErrCacheMiss when the
// tenant has no cached entry.
type RateCache interface {
	Get(ctx context.Context, tenantID int64) (decimal.Decimal, error)

	Set(ctx context.Context, tenantID int64, rate decimal.Decimal) error

	Invalidate(ctx context.Context, tenantID int64) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (decimal.Decimal, error) {
	return decimal.Zero, ErrCacheMiss
}

func (noopCache) Set(context.Context, int64, decimal.Decimal) error { return nil }

func (noopCache) Invalidate(context.Context, int64) error { return nil }
