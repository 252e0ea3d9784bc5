package handler

import (
	"encoding/json"
	"lending-backoffice/internal/api/handler/dto"
	"lending-backoffice/internal/domain/tenant"
	"lending-backoffice/internal/pkg/apperrors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTenantHandler(t *testing.T) {
	t.Run("get tenant", func(t *testing.T) {
		svc := new(MockTenantService)
		h := NewTenantHandler(svc, testLogger)
		svc.On("GetTenant", mock.Anything, int64(1)).Return(&tenant.Tenant{ID: 1, Name: "default"}, nil).Once()

		rec := httptest.NewRecorder()
		h.GetTenant(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/tenants/1", nil), "tenantID", "1"))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.TenantResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "default", resp.Name)
		assert.Nil(t, resp.PenaltyROI)
	})

	t.Run("update penalty rate", func(t *testing.T) {
		svc := new(MockTenantService)
		h := NewTenantHandler(svc, testLogger)
		rate := decimal.RequireFromString("2.5")
		svc.On("UpdatePenaltyROI", mock.Anything, int64(1), decimalEq("2.5")).
			Return(&tenant.Tenant{ID: 1, Name: "default", PenaltyROI: &rate}, nil).Once()

		rec := httptest.NewRecorder()
		h.UpdatePenaltyRate(rec, withURLParams(httptest.NewRequest(http.MethodPut, "/tenants/1/penalty-rate",
			strings.NewReader(`{"penaltyRoi":"2.5"}`)), "tenantID", "1"))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.TenantResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.NotNil(t, resp.PenaltyROI)
		assert.Equal(t, "2.5", *resp.PenaltyROI)
		svc.AssertExpectations(t)
	})

	t.Run("negative penalty rate", func(t *testing.T) {
		svc := new(MockTenantService)
		h := NewTenantHandler(svc, testLogger)

		rec := httptest.NewRecorder()
		h.UpdatePenaltyRate(rec, withURLParams(httptest.NewRequest(http.MethodPut, "/tenants/1/penalty-rate",
			strings.NewReader(`{"penaltyRoi":"-1"}`)), "tenantID", "1"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "UpdatePenaltyROI", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		svc := new(MockTenantService)
		h := NewTenantHandler(svc, testLogger)
		svc.On("UpdatePenaltyROI", mock.Anything, int64(9), mock.Anything).Return(nil, apperrors.ErrNotFound).Once()

		rec := httptest.NewRecorder()
		h.UpdatePenaltyRate(rec, withURLParams(httptest.NewRequest(http.MethodPut, "/tenants/9/penalty-rate",
			strings.NewReader(`{"penaltyRoi":"1"}`)), "tenantID", "9"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
