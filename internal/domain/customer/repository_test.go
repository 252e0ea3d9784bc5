package customer

import (
	"context"
	"lending-backoffice/internal/event"

	"github.com/stretchr/testify/mock"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (_m *MockCustomerRepository) Save(ctx context.Context, customer *Customer) error {
	ret := _m.Called(ctx, customer)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *Customer) error); ok {
		r0 = rf(ctx, customer)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Customer)
	}

	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) FindByLoanID(ctx context.Context, loanID int64) (*Customer, error) {
	ret := _m.Called(ctx, loanID)

	var r0 *Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Customer)
	}

	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) SetOverdueStatus(ctx context.Context, customerID int64, isOverdue bool) error {
	return _m.Called(ctx, customerID, isOverdue).Error(0)
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
