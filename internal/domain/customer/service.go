package customer

import (
	"context"
	"errors"
	"fmt"
	"lending-backoffice/internal/event"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

const (
	inputValidationPassed = "Input validation passed"
	customerNotFound      = "Customer not found by repository"
)

// CustomerService manages borrowers. Whether a customer may take another loan
// depends on the status of the current one, so that rule lives with loans.
type CustomerService interface {
	CreateCustomer(ctx context.Context, tenantID int64, name, email string) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
	FindCustomerByLoan(ctx context.Context, loanID int64) (*Customer, error)
	AssignLoanToCustomer(ctx context.Context, customerID int64, loanID int64) error
	UpdateOverdue(ctx context.Context, customerID int64, isOverdue bool) error
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, eventPublisher event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if eventPublisher == nil {
		eventPublisher = event.NewLogPublisher(logger)
	}

	return &customerService{
		repo:   repo,
		pub:    eventPublisher,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		CustomerID: cust.CustomerID,
		TenantID:   cust.TenantID,
		Name:       cust.Name,
		Email:      cust.Email,
		IsOverdue:  cust.IsOverdue,
		Active:     cust.Active,
		LoanID:     cust.LoanID,
		CreateDate: cust.CreateDate,
		UpdatedAt:  cust.UpdatedAt,
	}
}

func (s *customerService) publishCustomerUpdated(ctx context.Context, customer *Customer) {
	log := s.logger.With(slog.Int64("customerID", customer.CustomerID))
	evt := event.CustomerUpdatedEvent{
		Timestamp: time.Now(),
		Payload:   NewCustomerEventPayload(customer),
	}
	if err := s.pub.PublishCustomerUpdated(ctx, evt); err != nil {
		log.ErrorContext(ctx, "Failed to publish customer update event", slog.Any("error", err))
	}
}

func (s *customerService) CreateCustomer(ctx context.Context, tenantID int64, name, email string) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to create new customer", slog.Int64("tenantID", tenantID))

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if tenantID <= 0 {
		return nil, apperrors.NewValidationError("tenantId", "tenant ID must be positive")
	}
	if name == "" {
		s.logger.WarnContext(ctx, "Validation failed: name is empty")
		return nil, apperrors.NewValidationError("name", "customer name cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		s.logger.WarnContext(ctx, "Validation failed: email is malformed")
		return nil, apperrors.NewValidationError("email", "customer email is not a valid address")
	}
	s.logger.DebugContext(ctx, inputValidationPassed)

	customer := NewCustomer(tenantID, name, email)
	if err := s.repo.Save(ctx, customer); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	log := s.logger.With(slog.Int64("customerID", customer.CustomerID))
	createdEvent := event.CustomerCreatedEvent{
		Timestamp: time.Now(),
		Payload:   NewCustomerEventPayload(customer),
	}
	if pubErr := s.pub.PublishCustomerCreated(ctx, createdEvent); pubErr != nil {
		log.ErrorContext(ctx, "Customer created, but FAILED to publish creation event", slog.Any("error", pubErr))
	}

	log.InfoContext(ctx, "Successfully created new customer")
	return customer, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	log := s.logger.With(slog.Int64("customerID", customerID))
	log.InfoContext(ctx, "Attempting to get customer by ID")

	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, customerNotFound)
			return nil, ErrNotFound
		}
		log.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	return customer, nil
}

func (s *customerService) FindCustomerByLoan(ctx context.Context, loanID int64) (*Customer, error) {
	log := s.logger.With(slog.Int64("loanID", loanID))
	log.InfoContext(ctx, "Attempting to find customer by loan ID")

	customer, err := s.repo.FindByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, "Customer not found by repository for this loan ID")
			return nil, ErrNotFound
		}
		log.ErrorContext(ctx, "Repository error finding customer by loan ID", slog.Any("error", err))
		return nil, fmt.Errorf("failed to find customer by loan ID %d: %w", loanID, err)
	}

	return customer, nil
}

func (s *customerService) AssignLoanToCustomer(ctx context.Context, customerID int64, loanID int64) error {
	log := s.logger.With(slog.Int64("customerID", customerID), slog.Int64("loanID", loanID))
	log.InfoContext(ctx, "Attempting to assign loan to customer")

	if loanID <= 0 {
		log.WarnContext(ctx, "Validation failed: invalid loan ID provided")
		return fmt.Errorf("%w: invalid loan ID provided", apperrors.ErrInvalidArgument)
	}

	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, customerNotFound)
			return ErrNotFound
		}
		log.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return fmt.Errorf("cannot find customer %d to assign loan: %w", customerID, err)
	}

	if !customer.Active {
		log.WarnContext(ctx, "Business rule failed: cannot assign loan to inactive customer")
		return fmt.Errorf("%w: customer %d", ErrInactive, customerID)
	}

	if customer.LoanID != nil {
		if *customer.LoanID == loanID {
			log.InfoContext(ctx, "Loan already assigned to this customer, no action needed")
			return nil
		}
		log.InfoContext(ctx, "Replacing previously assigned loan", slog.Int64("previousLoanID", *customer.LoanID))
	}

	customer.AssignLoan(loanID)
	if err := s.repo.Save(ctx, customer); err != nil {
		log.ErrorContext(ctx, "Repository failed to save loan assignment", slog.Any("error", err))
		if errors.Is(err, ErrDuplicateLoanID) || errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to save loan assignment for customer %d: %w", customerID, err)
	}

	s.publishCustomerUpdated(ctx, customer)
	log.InfoContext(ctx, "Successfully assigned loan to customer")
	return nil
}

func (s *customerService) UpdateOverdue(ctx context.Context, customerID int64, isOverdue bool) error {
	log := s.logger.With(slog.Int64("customerID", customerID), slog.Bool("isOverdue", isOverdue))
	log.InfoContext(ctx, "Attempting to update customer overdue status")

	if err := s.repo.SetOverdueStatus(ctx, customerID, isOverdue); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, customerNotFound)
			return ErrNotFound
		}
		log.ErrorContext(ctx, "Repository error updating overdue status", slog.Any("error", err))
		return fmt.Errorf("failed to update overdue status for customer %d: %w", customerID, err)
	}

	updated, fetchErr := s.repo.FindByID(ctx, customerID)
	if fetchErr != nil {
		log.ErrorContext(ctx, "Updated status, but FAILED to re-fetch customer for event publishing", slog.Any("error", fetchErr))
	} else {
		s.publishCustomerUpdated(ctx, updated)
	}

	log.InfoContext(ctx, "Successfully updated customer overdue status")
	return nil
}
