package tenant

import (
	"context"
	"errors"
	"fmt"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"

	"github.com/shopspring/decimal"
)

type TenantService interface {
	GetTenant(ctx context.Context, tenantID int64) (*Tenant, error)
	PenaltyROI(ctx context.Context, tenantID int64) (decimal.Decimal, error)
	UpdatePenaltyROI(ctx context.Context, tenantID int64, rate decimal.Decimal) (*Tenant, error)
}

type tenantService struct {
	repo           Repository
	cache          RateCache
	defaultPenalty decimal.Decimal
	logger         *slog.Logger
}

// NewTenantService builds the tenant configuration reader. A nil cache
// disables caching.
func NewTenantService(repo Repository, cache RateCache, defaultPenalty decimal.Decimal, logger *slog.Logger) TenantService {
	if cache == nil {
		cache = noopCache{}
	}
	return &tenantService{
		repo:           repo,
		cache:          cache,
		defaultPenalty: defaultPenalty,
		logger:         logger.With("component", "tenantService"),
	}
}

func (s *tenantService) GetTenant(ctx context.Context, tenantID int64) (*Tenant, error) {
	t, err := s.repo.GetTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Tenant not found", "tenantID", tenantID)
			return nil, fmt.Errorf("%w: tenant %d not found", apperrors.ErrNotFound, tenantID)
		}
		s.logger.ErrorContext(ctx, "Failed to get tenant", "tenantID", tenantID, "error", err)
		return nil, fmt.Errorf("failed to get tenant %d: %w", tenantID, err)
	}
	return t, nil
}

func (s *tenantService) PenaltyROI(ctx context.Context, tenantID int64) (decimal.Decimal, error) {
	cached, err := s.cache.Get(ctx, tenantID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.WarnContext(ctx, "Penalty rate cache read failed, falling back to database", "tenantID", tenantID, "error", err)
	}

	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return decimal.Zero, err
	}

	rate := s.defaultPenalty
	if t.PenaltyROI != nil {
		rate = *t.PenaltyROI
	}

	if err := s.cache.Set(ctx, tenantID, rate); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache penalty rate", "tenantID", tenantID, "error", err)
	}
	return rate, nil
}

func (s *tenantService) UpdatePenaltyROI(ctx context.Context, tenantID int64, rate decimal.Decimal) (*Tenant, error) {
	if rate.IsNegative() {
		return nil, apperrors.NewValidationError("penaltyRoi", "penalty rate must not be negative")
	}

	t, err := s.repo.UpdatePenaltyROI(ctx, tenantID, rate)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: tenant %d not found", apperrors.ErrNotFound, tenantID)
		}
		s.logger.ErrorContext(ctx, "Failed to update penalty rate", "tenantID", tenantID, "error", err)
		return nil, fmt.Errorf("failed to update penalty rate for tenant %d: %w", tenantID, err)
	}

	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate cached penalty rate", "tenantID", tenantID, "error", err)
	}

	s.logger.InfoContext(ctx, "Penalty rate updated", "tenantID", tenantID, "penaltyRoi", rate.String())
	return t, nil
}
