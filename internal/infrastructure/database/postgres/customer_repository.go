package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const customerColumns = `id, tenant_id, name, email, is_overdue, active, loan_id, created_at, updated_at`

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	if cust.CustomerID == 0 {
		return r.createCustomer(ctx, cust)
	}
	return r.updateCustomer(ctx, cust)
}

func (r *CustomerRepository) createCustomer(ctx context.Context, cust *customer.Customer) error {
	r.logger.InfoContext(ctx, "Attempting to insert new customer", slog.Int64("tenantID", cust.TenantID))

	query := `
        INSERT INTO customers (tenant_id, name, email, is_overdue, active, loan_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at`
	startTime := time.Now()

	err := r.db.QueryRow(ctx, query,
		cust.TenantID,
		cust.Name,
		cust.Email,
		cust.IsOverdue,
		cust.Active,
		cust.LoanID,
	).Scan(
		&cust.CustomerID,
		&cust.CreateDate,
		&cust.UpdatedAt,
	)
	observe("CreateCustomer", startTime, err)

	if err != nil {
		return r.writeError(ctx, "insert", err)
	}

	r.logger.InfoContext(ctx, "Customer inserted successfully", slog.Int64("customerID", cust.CustomerID))
	return nil
}

func (r *CustomerRepository) updateCustomer(ctx context.Context, cust *customer.Customer) error {
	log := r.logger.With(slog.Int64("customerID", cust.CustomerID))
	log.InfoContext(ctx, "Attempting to update customer")

	query := `
        UPDATE customers
        SET name = $1,
            email = $2,
            is_overdue = $3,
            active = $4,
            loan_id = $5,
            updated_at = NOW()
        WHERE id = $6
        RETURNING updated_at`
	startTime := time.Now()

	err := r.db.QueryRow(ctx, query,
		cust.Name,
		cust.Email,
		cust.IsOverdue,
		cust.Active,
		cust.LoanID,
		cust.CustomerID,
	).Scan(&cust.UpdatedAt)
	observe("UpdateCustomer", startTime, err)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.WarnContext(ctx, "Update affected zero rows, customer likely not found")
			return customer.ErrNotFound
		}
		return r.writeError(ctx, "update", err)
	}

	log.InfoContext(ctx, "Customer updated successfully")
	return nil
}

// writeError maps a unique violation on loan_id to ErrDuplicateLoanID and a
// missing tenant to a validation failure.
func (r *CustomerRepository) writeError(ctx context.Context, op string, err error) error {
	translated := translateDBError(err, r.logger)
	switch {
	case errors.Is(translated, apperrors.ErrAlreadyExists):
		r.logger.WarnContext(ctx, "Failed to "+op+" customer due to unique constraint violation", slog.Any("error", err))
		return customer.ErrDuplicateLoanID
	case errors.Is(translated, apperrors.ErrValidation):
		r.logger.WarnContext(ctx, "Failed to "+op+" customer due to foreign key violation", slog.Any("error", err))
		return apperrors.NewValidationError("tenantId", "tenant does not exist")
	}
	r.logger.ErrorContext(ctx, "Failed to "+op+" customer", slog.Any("error", err))
	return fmt.Errorf("%w: failed to %s customer: %w", apperrors.ErrDatabase, op, err)
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	r.logger.InfoContext(ctx, "Attempting to find customer by ID", slog.Int64("customerID", customerID))

	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	startTime := time.Now()

	cust, err := scanCustomer(r.db.QueryRow(ctx, query, customerID))
	observe("FindCustomerByID", startTime, err)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", slog.Int64("customerID", customerID))
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan customer by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get customer by ID: %w", apperrors.ErrDatabase, err)
	}

	return cust, nil
}

func (r *CustomerRepository) FindByLoanID(ctx context.Context, loanID int64) (*customer.Customer, error) {
	r.logger.InfoContext(ctx, "Attempting to find customer by loan ID", slog.Int64("loanID", loanID))

	query := `SELECT ` + customerColumns + ` FROM customers WHERE loan_id = $1`
	startTime := time.Now()

	cust, err := scanCustomer(r.db.QueryRow(ctx, query, loanID))
	observe("FindCustomerByLoanID", startTime, err)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found for the given loan ID")
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan customer by loan ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get customer by loan ID: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Customer found successfully by loan ID", slog.Int64("customerID", cust.CustomerID))
	return cust, nil
}

func (r *CustomerRepository) SetOverdueStatus(ctx context.Context, customerID int64, isOverdue bool) error {
	r.logger.InfoContext(ctx, "Attempting to set overdue status", slog.Int64("customerID", customerID))

	query := `UPDATE customers SET is_overdue = $1, updated_at = NOW() WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, query, isOverdue, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to execute update overdue status", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update overdue status: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update overdue status affected zero rows, customer likely not found")
		return customer.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Customer overdue status updated successfully")
	return nil
}

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var cust customer.Customer
	err := row.Scan(
		&cust.CustomerID,
		&cust.TenantID,
		&cust.Name,
		&cust.Email,
		&cust.IsOverdue,
		&cust.Active,
		&cust.LoanID,
		&cust.CreateDate,
		&cust.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cust, nil
}
