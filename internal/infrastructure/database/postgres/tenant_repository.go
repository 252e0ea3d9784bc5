package postgres

import (
	"context"
	"errors"
	"fmt"
	"lending-backoffice/internal/domain/tenant"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type TenantRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ tenant.Repository = (*TenantRepository)(nil)

func NewTenantRepository(db DBPool, logger *slog.Logger) *TenantRepository {
	return &TenantRepository{db: db, logger: logger.With("component", "TenantRepository")}
}

func (r *TenantRepository) GetTenantByID(ctx context.Context, tenantID int64) (*tenant.Tenant, error) {
	query := `SELECT id, name, penalty_roi, created_at, updated_at FROM tenants WHERE id = $1`
	startTime := time.Now()

	t, err := scanTenant(r.db.QueryRow(ctx, query, tenantID))
	observe("GetTenantByID", startTime, err)

	return t, r.tenantError(ctx, tenantID, err)
}

func (r *TenantRepository) UpdatePenaltyROI(ctx context.Context, tenantID int64, rate decimal.Decimal) (*tenant.Tenant, error) {
	query := `
        UPDATE tenants SET penalty_roi = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING id, name, penalty_roi, created_at, updated_at`
	startTime := time.Now()

	t, err := scanTenant(r.db.QueryRow(ctx, query, rate, tenantID))
	observe("UpdateTenantPenaltyROI", startTime, err)

	return t, r.tenantError(ctx, tenantID, err)
}

func (r *TenantRepository) tenantError(ctx context.Context, tenantID int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.WarnContext(ctx, "Tenant not found", "tenant_id", tenantID)
		return apperrors.ErrNotFound
	}
	r.logger.ErrorContext(ctx, "Tenant query failed", "tenant_id", tenantID, "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var (
		t       tenant.Tenant
		penalty decimal.NullDecimal
	)
	if err := row.Scan(&t.ID, &t.Name, &penalty, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if penalty.Valid {
		t.PenaltyROI = &penalty.Decimal
	}
	return &t, nil
}
