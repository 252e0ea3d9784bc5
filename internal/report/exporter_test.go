package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/infrastructure/monitoring"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockLoanLister struct {
	mock.Mock
}

func (m *MockLoanLister) ListLoansForExport(ctx context.Context) ([]loan.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]loan.Loan), args.Error(1)
}

type MockPenaltyRates struct {
	mock.Mock
}

func (m *MockPenaltyRates) PenaltyROI(ctx context.Context, tenantID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func exportLoan(id int64, disbursal time.Time, status loan.LoanStatus, collections ...loan.Collection) loan.Loan {
	return loan.Loan{
		ID:            id,
		TenantID:      1,
		CustomerID:    id * 10,
		Principal:     decimal.NewFromInt(10000),
		DailyROI:      decimal.NewFromInt(1),
		TenureDays:    30,
		DisbursalDate: disbursal,
		RepaymentDate: disbursal.AddDate(0, 0, 30),
		Status:        status,
		Collections:   collections,
	}
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExporter_Export(t *testing.T) {
	ctx := context.Background()
	asOf := date(2024, 2, 10)

	t.Run("values open and closed loans", func(t *testing.T) {
		lister, rates := new(MockLoanLister), new(MockPenaltyRates)
		closed := exportLoan(2, date(2024, 1, 1), loan.StatusClosed, loan.Collection{
			LoanID:        2,
			Amount:        decimal.NewFromInt(13000),
			CollectedDate: date(2024, 1, 31),
			Status:        loan.StatusActive,
		})
		lister.On("ListLoansForExport", ctx).Return([]loan.Loan{
			exportLoan(1, date(2024, 1, 1), loan.StatusActive),
			closed,
		}, nil).Once()
		rates.On("PenaltyROI", ctx, int64(1)).Return(decimal.RequireFromString("1.25"), nil).Once()

		var buf bytes.Buffer
		n, err := NewExporter(lister, rates, logger).Export(ctx, &buf, asOf)

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		records := readCSV(t, &buf)
		require.Len(t, records, 3)
		assert.Equal(t, header, records[0])
		assert.Equal(t, []string{
			"1", "10", "1", "10000.00", "2024-01-01", "2024-01-31", "ACTIVE",
			"10", "10000.00", "3000.00", "1250.00", "14250.00",
		}, records[1])
		assert.Equal(t, "CLOSED", records[2][6])
		assert.Equal(t, "0", records[2][7])
		assert.Equal(t, "0.00", records[2][11])
		rates.AssertExpectations(t)
	})

	t.Run("skips loans disbursed after the export date", func(t *testing.T) {
		lister, rates := new(MockLoanLister), new(MockPenaltyRates)
		lister.On("ListLoansForExport", ctx).Return([]loan.Loan{
			exportLoan(3, date(2024, 3, 1), loan.StatusActive),
		}, nil).Once()
		rates.On("PenaltyROI", ctx, int64(1)).Return(decimal.RequireFromString("1.25"), nil).Once()

		var buf bytes.Buffer
		n, err := NewExporter(lister, rates, logger).Export(ctx, &buf, asOf)

		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, readCSV(t, &buf), 1)
	})

	t.Run("loans that cannot be valued are skipped and counted as errors", func(t *testing.T) {
		lister, rates := new(MockLoanLister), new(MockPenaltyRates)
		broken := exportLoan(4, date(2024, 1, 1), loan.StatusActive, loan.Collection{
			LoanID:        4,
			Amount:        decimal.NewFromInt(100),
			CollectedDate: date(2023, 12, 31),
			Status:        loan.StatusActive,
		})
		lister.On("ListLoansForExport", ctx).Return([]loan.Loan{broken}, nil).Once()
		rates.On("PenaltyROI", ctx, int64(1)).Return(decimal.RequireFromString("1.25"), nil).Once()
		failed := monitoring.Business.AccrualRunsTotal.WithLabelValues("export", monitoring.AccrualError)
		before := testutil.ToFloat64(failed)

		var buf bytes.Buffer
		n, err := NewExporter(lister, rates, logger).Export(ctx, &buf, asOf)

		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, readCSV(t, &buf), 1)
		assert.Equal(t, before+1, testutil.ToFloat64(failed))
	})

	t.Run("list failure", func(t *testing.T) {
		lister, rates := new(MockLoanLister), new(MockPenaltyRates)
		lister.On("ListLoansForExport", ctx).Return(nil, apperrors.ErrDatabase).Once()

		var buf bytes.Buffer
		_, err := NewExporter(lister, rates, logger).Export(ctx, &buf, asOf)

		assert.ErrorIs(t, err, apperrors.ErrDatabase)
		assert.Zero(t, buf.Len())
	})

	t.Run("penalty rate failure", func(t *testing.T) {
		lister, rates := new(MockLoanLister), new(MockPenaltyRates)
		lister.On("ListLoansForExport", ctx).Return([]loan.Loan{
			exportLoan(1, date(2024, 1, 1), loan.StatusActive),
		}, nil).Once()
		rates.On("PenaltyROI", ctx, int64(1)).Return(decimal.Zero, apperrors.ErrNotFound).Once()

		var buf bytes.Buffer
		_, err := NewExporter(lister, rates, logger).Export(ctx, &buf, asOf)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
