package dto

import (
	"lending-backoffice/internal/domain/accrual"
	"lending-backoffice/internal/domain/loan"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLoanRequest_ToParams(t *testing.T) {
	valid := CreateLoanRequest{
		CustomerID:    3,
		Principal:     "10000",
		DailyROI:      "1.5",
		TenureDays:    30,
		DisbursalDate: "2024-01-01",
	}

	t.Run("valid request", func(t *testing.T) {
		params, err := valid.ToParams()
		require.NoError(t, err)
		assert.Equal(t, int64(3), params.CustomerID)
		assert.True(t, params.Principal.Equal(decimal.NewFromInt(10000)))
		assert.True(t, params.DailyROI.Equal(decimal.RequireFromString("1.5")))
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), params.DisbursalDate)
	})

	tests := []struct {
		name   string
		mutate func(r *CreateLoanRequest)
		errMsg string
	}{
		{"missing customer", func(r *CreateLoanRequest) { r.CustomerID = 0 }, "customerId must be positive"},
		{"zero tenure", func(r *CreateLoanRequest) { r.TenureDays = 0 }, "tenureDays must be positive"},
		{"bad principal", func(r *CreateLoanRequest) { r.Principal = "ten" }, "invalid numeric format for principal"},
		{"zero principal", func(r *CreateLoanRequest) { r.Principal = "0" }, "principal must be greater than zero"},
		{"negative rate", func(r *CreateLoanRequest) { r.DailyROI = "-1" }, "dailyRoi must not be negative"},
		{"bad date", func(r *CreateLoanRequest) { r.DisbursalDate = "01/01/2024" }, "disbursalDate: invalid date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := req.ToParams()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRecordCollectionRequest_Parse(t *testing.T) {
	today := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	amount, date, err := (&RecordCollectionRequest{Amount: "5000"}).Parse(today)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, today, date)

	_, date, err = (&RecordCollectionRequest{Amount: "1", CollectedDate: "2024-01-20"}).Parse(today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), date)

	_, _, err = (&RecordCollectionRequest{Amount: "1", CollectedDate: "yesterday"}).Parse(today)
	assert.Error(t, err)
}

func TestWaiverQuoteRequest_Parse(t *testing.T) {
	settlement, asOf, err := (&WaiverQuoteRequest{SettlementAmount: "12000"}).Parse()
	require.NoError(t, err)
	assert.True(t, settlement.Equal(decimal.NewFromInt(12000)))
	assert.Nil(t, asOf)

	_, asOf, err = (&WaiverQuoteRequest{SettlementAmount: "12000", AsOf: "2024-02-10"}).Parse()
	require.NoError(t, err)
	require.NotNil(t, asOf)
	assert.Equal(t, 10, asOf.Day())
}

func TestNewRepaymentResponse(t *testing.T) {
	r := &loan.Repayment{
		LoanID:        7,
		Status:        loan.StatusActive,
		ReferenceDate: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		RepaymentDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		PenaltyROI:    decimal.RequireFromString("1.25"),
		Accrual: accrual.Result{
			RemainingPrincipal: decimal.RequireFromString("8625"),
			TotalInterest:      decimal.RequireFromString("0.004"),
			PenaltyInterest:    decimal.RequireFromString("107.8125"),
			PenaltyDays:        1,
			CurrentRepayAmount: decimal.RequireFromString("8732.8165"),
			ExcessPaid:         decimal.Zero,
		},
	}

	resp := NewRepaymentResponse(r)

	assert.Equal(t, "7", resp.LoanID)
	assert.Equal(t, "2024-02-10", resp.ReferenceDate)
	assert.Equal(t, "2024-01-31", resp.RepaymentDate)
	assert.Equal(t, "1.25", resp.PenaltyROI)
	assert.Equal(t, "8625.00", resp.RemainingPrincipal)
	assert.Equal(t, "0.00", resp.TotalInterest)
	assert.Equal(t, "107.81", resp.PenaltyInterest)
	assert.Equal(t, "8732.82", resp.CurrentRepayAmount)
	assert.True(t, resp.Overdue)
}

func TestNewLoanResponse(t *testing.T) {
	l := &loan.Loan{
		ID:            1,
		TenantID:      2,
		CustomerID:    3,
		Principal:     decimal.NewFromInt(1000),
		DailyROI:      decimal.RequireFromString("0.5"),
		TenureDays:    10,
		DisbursalDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		RepaymentDate: time.Date(2023, 1, 11, 0, 0, 0, 0, time.UTC),
		Status:        loan.StatusActive,
	}

	resp := NewLoanResponse(l)

	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, "2", resp.TenantID)
	assert.Equal(t, "3", resp.CustomerID)
	assert.Equal(t, "1000.00", resp.Principal)
	assert.Equal(t, "0.5", resp.DailyROI)
	assert.Equal(t, "2023-01-01", resp.DisbursalDate)
	assert.Equal(t, "2023-01-11", resp.RepaymentDate)
	assert.Equal(t, "ACTIVE", resp.Status)
}
