package customer

import (
	"context"
	"fmt"
	"lending-backoffice/internal/pkg/apperrors"
)

var (
	ErrNotFound = fmt.Errorf("customer %w", apperrors.ErrNotFound)

	ErrDuplicateLoanID = fmt.Errorf("%w: loan ID already assigned to another customer", apperrors.ErrConflict)

	ErrCustomerAlreadyHasLoan = fmt.Errorf("%w: customer already has an active loan", apperrors.ErrConflict)

	ErrInactive = fmt.Errorf("%w: customer is not active", apperrors.ErrValidation)
)

type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindByLoanID(ctx context.Context, loanID int64) (*Customer, error)

	SetOverdueStatus(ctx context.Context, customerID int64, isOverdue bool) error
}
