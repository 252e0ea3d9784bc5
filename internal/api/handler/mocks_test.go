package handler

import (
	"bytes"
	"context"
	"io"
	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/domain/tenant"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var testLogger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

// withURLParams attaches chi route params to req, alternating keys and values.
func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateLoan(ctx context.Context, params loan.CreateLoanParams) (*loan.Loan, error) {
	args := m.Called(ctx, params)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetRepayment(ctx context.Context, loanID int64, asOf *time.Time) (*loan.Repayment, error) {
	args := m.Called(ctx, loanID, asOf)
	if r, ok := args.Get(0).(*loan.Repayment); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) RecordCollection(ctx context.Context, loanID int64, amount decimal.Decimal, collectedDate time.Time) (*loan.CollectionResult, error) {
	args := m.Called(ctx, loanID, amount, collectedDate)
	if r, ok := args.Get(0).(*loan.CollectionResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) QuoteWaiver(ctx context.Context, loanID int64, settlement decimal.Decimal, asOf *time.Time) (*loan.WaiverQuote, error) {
	args := m.Called(ctx, loanID, settlement, asOf)
	if q, ok := args.Get(0).(*loan.WaiverQuote); ok {
		return q, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListCollections(ctx context.Context, loanID int64) ([]loan.Collection, error) {
	args := m.Called(ctx, loanID)
	if c, ok := args.Get(0).([]loan.Collection); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) CreateCustomer(ctx context.Context, tenantID int64, name, email string) (*customer.Customer, error) {
	args := m.Called(ctx, tenantID, name, email)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) FindCustomerByLoan(ctx context.Context, loanID int64) (*customer.Customer, error) {
	args := m.Called(ctx, loanID)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) AssignLoanToCustomer(ctx context.Context, customerID int64, loanID int64) error {
	return m.Called(ctx, customerID, loanID).Error(0)
}

func (m *MockCustomerService) UpdateOverdue(ctx context.Context, customerID int64, isOverdue bool) error {
	return m.Called(ctx, customerID, isOverdue).Error(0)
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) GetTenant(ctx context.Context, tenantID int64) (*tenant.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if t, ok := args.Get(0).(*tenant.Tenant); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTenantService) PenaltyROI(ctx context.Context, tenantID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockTenantService) UpdatePenaltyROI(ctx context.Context, tenantID int64, rate decimal.Decimal) (*tenant.Tenant, error) {
	args := m.Called(ctx, tenantID, rate)
	if t, ok := args.Get(0).(*tenant.Tenant); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Export(ctx context.Context, w io.Writer, asOf time.Time) (int, error) {
	args := m.Called(ctx, w, asOf)
	if fn, ok := args.Get(0).(func(io.Writer) int); ok {
		return fn(w), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}
