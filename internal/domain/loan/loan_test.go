package loan

import (
	"lending-backoffice/internal/domain/accrual"
	"lending-backoffice/internal/pkg/apperrors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoan(t *testing.T) {
	valid := CreateLoanParams{
		TenantID:      1,
		CustomerID:    2,
		Principal:     decimal.NewFromInt(10000),
		DailyROI:      decimal.NewFromInt(1),
		TenureDays:    30,
		DisbursalDate: time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC),
	}

	t.Run("should derive the repayment date at day granularity", func(t *testing.T) {
		l, err := NewLoan(valid)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), l.DisbursalDate)
		assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), l.RepaymentDate)
		assert.Equal(t, StatusActive, l.Status)
	})

	t.Run("should reject a non-positive principal", func(t *testing.T) {
		p := valid
		p.Principal = decimal.Zero
		_, err := NewLoan(p)
		assert.ErrorIs(t, err, apperrors.ErrInvalidLoanTerms)
	})

	t.Run("should reject a zero tenure", func(t *testing.T) {
		p := valid
		p.TenureDays = 0
		_, err := NewLoan(p)
		var vErr *apperrors.ValidationError
		if assert.ErrorAs(t, err, &vErr) {
			assert.Equal(t, "tenureDays", vErr.Field)
		}
	})

	t.Run("should reject a negative rate", func(t *testing.T) {
		p := valid
		p.DailyROI = decimal.RequireFromString("-0.1")
		_, err := NewLoan(p)
		assert.ErrorIs(t, err, apperrors.ErrInvalidLoanTerms)
	})

	t.Run("should reject a missing disbursal date", func(t *testing.T) {
		p := valid
		p.DisbursalDate = time.Time{}
		_, err := NewLoan(p)
		assert.Error(t, err)
	})
}

func TestReferenceDate(t *testing.T) {
	asOf := day(50)
	ledger := []Collection{
		{CollectedDate: day(12)},
		{CollectedDate: day(31)},
		{CollectedDate: day(5)},
	}

	t.Run("active loans use the requested date", func(t *testing.T) {
		assert.Equal(t, asOf, testLoan(StatusActive).ReferenceDate(asOf, ledger))
	})

	t.Run("closed loans use the latest collection", func(t *testing.T) {
		assert.Equal(t, day(31), testLoan(StatusClosed).ReferenceDate(asOf, ledger))
	})

	t.Run("closed loans without collections fall back to the requested date", func(t *testing.T) {
		assert.Equal(t, asOf, testLoan(StatusClosed).ReferenceDate(asOf, nil))
	})
}

func TestCollectionEvents(t *testing.T) {
	events := CollectionEvents([]Collection{{Amount: decimal.NewFromInt(5), CollectedDate: day(2), Status: StatusActive}})

	require.Len(t, events, 1)
	assert.Equal(t, "ACTIVE", events[0].Status)
	assert.Equal(t, day(2), events[0].Date)
}

func TestNewWaiverQuote(t *testing.T) {
	result := accrual.Result{
		RemainingPrincipal: decimal.NewFromInt(10000),
		TotalInterest:      decimal.NewFromInt(3000),
		PenaltyInterest:    decimal.NewFromInt(1250),
		CurrentRepayAmount: decimal.NewFromInt(14250),
	}

	t.Run("waives into principal once penalty and interest are exhausted", func(t *testing.T) {
		q, err := NewWaiverQuote(7, day(40), result, decimal.NewFromInt(9000))
		require.NoError(t, err)
		assertDecimal(t, "5250", q.WaiverAmount)
		assertDecimal(t, "1250", q.PenaltyWaived)
		assertDecimal(t, "3000", q.InterestWaived)
		assertDecimal(t, "1000", q.PrincipalWaived)
	})

	t.Run("settling in full waives nothing", func(t *testing.T) {
		q, err := NewWaiverQuote(7, day(40), result, decimal.NewFromInt(14250))
		require.NoError(t, err)
		assert.True(t, q.WaiverAmount.IsZero())
	})

	t.Run("rejects a non-positive settlement", func(t *testing.T) {
		_, err := NewWaiverQuote(7, day(40), result, decimal.Zero)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}
