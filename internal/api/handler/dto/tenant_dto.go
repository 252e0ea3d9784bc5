package dto

import (
	"fmt"
	"lending-backoffice/internal/domain/tenant"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type UpdatePenaltyRateRequest struct {
	PenaltyROI string `json:"penaltyRoi" example:"1.25"`
}

func (r *UpdatePenaltyRateRequest) Parse() (decimal.Decimal, error) {
	rate, err := parseAmount("penaltyRoi", r.PenaltyROI)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("penaltyRoi must not be negative")
	}
	return rate, nil
}

type TenantResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PenaltyROI *string   `json:"penaltyRoi,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewTenantResponse(t *tenant.Tenant) TenantResponse {
	var rate *string
	if t.PenaltyROI != nil {
		s := t.PenaltyROI.String()
		rate = &s
	}
	return TenantResponse{
		ID:         strconv.FormatInt(t.ID, 10),
		Name:       t.Name,
		PenaltyROI: rate,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
