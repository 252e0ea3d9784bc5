package handler

import (
	"fmt"
	"lending-backoffice/internal/api/handler/dto"
	"lending-backoffice/internal/domain/tenant"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"net/http"
)

type TenantHandler struct {
	service tenant.TenantService
	logger  *slog.Logger
}

func NewTenantHandler(s tenant.TenantService, l *slog.Logger) *TenantHandler {
	return &TenantHandler{
		service: s,
		logger:  l.With("component", "TenantHandler"),
	}
}

// GetTenant handles GET /tenants/{tenantID}
// @Summary Retrieve tenant settings
// @Description penaltyRoi is omitted when the tenant uses the default penalty rate.
// @Tags Tenants
// @Produce json
// @Param tenantID path int true "Tenant ID" Minimum(1)
// @Success 200 {object} dto.TenantResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid tenant ID"
// @Failure 404 {object} dto.ErrorResponse "Tenant not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tenants/{tenantID} [get]
// @Security BearerAuth
func (h *TenantHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getIDFromURL(r, "tenantID")
	if err != nil {
		respondError(w, err)
		return
	}

	t, err := h.service.GetTenant(r.Context(), tenantID)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to get tenant", slog.Int64("tenantID", tenantID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewTenantResponse(t))
}

// UpdatePenaltyRate handles PUT /tenants/{tenantID}/penalty-rate
// @Summary Set the tenant penalty rate
// @Description Sets the daily penalty rate, in percent of principal, charged after the repayment date.
// @Tags Tenants
// @Accept json
// @Produce json
// @Param tenantID path int true "Tenant ID" Minimum(1)
// @Param request body dto.UpdatePenaltyRateRequest true "Penalty rate payload"
// @Success 200 {object} dto.TenantResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid tenant ID or rate"
// @Failure 404 {object} dto.ErrorResponse "Tenant not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tenants/{tenantID}/penalty-rate [put]
// @Security BearerAuth
func (h *TenantHandler) UpdatePenaltyRate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getIDFromURL(r, "tenantID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.UpdatePenaltyRateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	rate, err := req.Parse()
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	t, err := h.service.UpdatePenaltyROI(r.Context(), tenantID, rate)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to update penalty rate", slog.Int64("tenantID", tenantID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewTenantResponse(t))
}
