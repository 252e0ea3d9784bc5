package loan

import (
	"context"
	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/event"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateLoan(ctx context.Context, l *Loan) (*Loan, error) {
	ret := m.Called(ctx, l)
	var r0 *Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Loan)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) GetLoanByID(ctx context.Context, loanID int64) (*Loan, error) {
	ret := m.Called(ctx, loanID)
	var r0 *Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Loan)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) GetLoanByIDInTx(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error) {
	ret := m.Called(ctx, tx, loanID)
	var r0 *Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Loan)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error) {
	ret := m.Called(ctx, tx, loanID)
	var r0 *Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Loan)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) ListCollections(ctx context.Context, loanID int64) ([]Collection, error) {
	ret := m.Called(ctx, loanID)
	var r0 []Collection
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]Collection)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) ListCollectionsInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]Collection, error) {
	ret := m.Called(ctx, tx, loanID)
	var r0 []Collection
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]Collection)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) InsertCollection(ctx context.Context, tx pgx.Tx, c *Collection) (*Collection, error) {
	ret := m.Called(ctx, tx, c)
	var r0 *Collection
	if rf, ok := ret.Get(0).(func(context.Context, pgx.Tx, *Collection) *Collection); ok {
		r0 = rf(ctx, tx, c)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Collection)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) UpdateLoanStatusInTx(ctx context.Context, tx pgx.Tx, loanID int64, status LoanStatus) error {
	return m.Called(ctx, tx, loanID, status).Error(0)
}

func (m *MockRepository) GetAllActiveLoanIDs(ctx context.Context) ([]int64, error) {
	ret := m.Called(ctx)
	var r0 []int64
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]int64)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) ListLoansForExport(ctx context.Context) ([]Loan, error) {
	ret := m.Called(ctx)
	var r0 []Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]Loan)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	ret := m.Called(ctx)
	var r0 pgx.Tx
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(pgx.Tx)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) BeginSnapshotTx(ctx context.Context) (pgx.Tx, error) {
	ret := m.Called(ctx)
	var r0 pgx.Tx
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(pgx.Tx)
	}
	return r0, ret.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) CreateCustomer(ctx context.Context, tenantID int64, name, email string) (*customer.Customer, error) {
	ret := m.Called(ctx, tenantID, name, email)
	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	ret := m.Called(ctx, customerID)
	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (m *MockCustomerService) FindCustomerByLoan(ctx context.Context, loanID int64) (*customer.Customer, error) {
	ret := m.Called(ctx, loanID)
	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (m *MockCustomerService) AssignLoanToCustomer(ctx context.Context, customerID int64, loanID int64) error {
	return m.Called(ctx, customerID, loanID).Error(0)
}

func (m *MockCustomerService) UpdateOverdue(ctx context.Context, customerID int64, isOverdue bool) error {
	return m.Called(ctx, customerID, isOverdue).Error(0)
}

type MockPenaltyRates struct {
	mock.Mock
}

func (m *MockPenaltyRates) PenaltyROI(ctx context.Context, tenantID int64) (decimal.Decimal, error) {
	ret := m.Called(ctx, tenantID)
	return ret.Get(0).(decimal.Decimal), ret.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCustomerCreated(ctx context.Context, evt event.CustomerCreatedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockEventPublisher) PublishCustomerUpdated(ctx context.Context, evt event.CustomerUpdatedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockEventPublisher) PublishCollectionRecorded(ctx context.Context, evt event.CollectionRecordedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockEventPublisher) PublishLoanClosed(ctx context.Context, evt event.LoanClosedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockEventPublisher) PublishLoanOverdue(ctx context.Context, evt event.LoanOverdueEvent) error {
	return m.Called(ctx, evt).Error(0)
}
