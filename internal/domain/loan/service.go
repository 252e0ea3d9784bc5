package loan

import (
	"context"
	"errors"
	"fmt"
	"lending-backoffice/internal/domain/accrual"
	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/event"
	"lending-backoffice/internal/infrastructure/monitoring"
	"lending-backoffice/internal/infrastructure/tracing"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type LoanService interface {
	CreateLoan(ctx context.Context, params CreateLoanParams) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	// GetRepayment values the loan at asOf, or now when asOf is nil. Closed
	// loans are valued at their last collection date regardless.
	GetRepayment(ctx context.Context, loanID int64, asOf *time.Time) (*Repayment, error)

	RecordCollection(ctx context.Context, loanID int64, amount decimal.Decimal, collectedDate time.Time) (*CollectionResult, error)

	QuoteWaiver(ctx context.Context, loanID int64, settlement decimal.Decimal, asOf *time.Time) (*WaiverQuote, error)

	ListCollections(ctx context.Context, loanID int64) ([]Collection, error)
}

// PenaltyRateReader supplies the tenant's penalty rate.
type PenaltyRateReader interface {
	PenaltyROI(ctx context.Context, tenantID int64) (decimal.Decimal, error)
}

type CollectionResult struct {
	Collection Collection
	Repayment  Repayment
	LoanClosed bool
}

type loanServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	tenants         PenaltyRateReader
	pub             event.EventPublisher
	logger          *slog.Logger
	now             func() time.Time
}

func NewLoanService(r Repository, cs customer.CustomerService, tenants PenaltyRateReader, pub event.EventPublisher, logger *slog.Logger) LoanService {
	if pub == nil {
		pub = event.NewLogPublisher(logger)
	}
	return &loanServiceImpl{
		repo:            r,
		customerService: cs,
		tenants:         tenants,
		pub:             pub,
		logger:          logger.With("component", "loanService"),
		now:             time.Now,
	}
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, params CreateLoanParams) (*Loan, error) {
	log := s.logger.With("customerID", params.CustomerID)
	log.InfoContext(ctx, "Creating new loan")

	cust, err := s.customerService.GetCustomer(ctx, params.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			log.WarnContext(ctx, "Customer not found")
			return nil, apperrors.NewValidationError("customerId", fmt.Sprintf("customer %d not found", params.CustomerID))
		}
		log.ErrorContext(ctx, "Failed to get customer details", "error", err)
		return nil, fmt.Errorf("failed to verify customer status: %w", err)
	}

	if !cust.Active {
		log.WarnContext(ctx, "Attempted to create loan for inactive customer")
		return nil, fmt.Errorf("%w: customer %d", customer.ErrInactive, params.CustomerID)
	}
	if params.TenantID == 0 {
		params.TenantID = cust.TenantID
	}
	if params.TenantID != cust.TenantID {
		return nil, apperrors.NewValidationError("tenantId", "customer belongs to a different tenant")
	}

	if cust.LoanID != nil {
		existing, err := s.repo.GetLoanByID(ctx, *cust.LoanID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			log.ErrorContext(ctx, "Failed to get existing loan details", "error", err)
			return nil, fmt.Errorf("failed to get existing loan details: %w", err)
		}
		if existing != nil && existing.Status != StatusClosed {
			log.WarnContext(ctx, "Customer already has an active loan", "existingLoanID", existing.ID)
			return nil, fmt.Errorf("%w (loan %d)", customer.ErrCustomerAlreadyHasLoan, existing.ID)
		}
	}

	l, err := NewLoan(params)
	if err != nil {
		log.WarnContext(ctx, "Rejected loan terms", "error", err)
		return nil, err
	}

	created, err := s.repo.CreateLoan(ctx, l)
	if err != nil {
		log.ErrorContext(ctx, "Failed to save loan", "error", err)
		return nil, fmt.Errorf("failed to save loan: %w", err)
	}

	if err := s.customerService.AssignLoanToCustomer(ctx, params.CustomerID, created.ID); err != nil {
		log.ErrorContext(ctx, "Failed to assign loan to customer", "loanID", created.ID, "error", err)
		return nil, fmt.Errorf("failed to assign loan to customer: %w", err)
	}

	log.InfoContext(ctx, "Loan created successfully", "loanID", created.ID)
	return created, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	s.logger.InfoContext(ctx, "Getting loan details", "loanID", loanID)

	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		return nil, s.loanLookupError(ctx, loanID, err)
	}

	collections, err := s.repo.ListCollections(ctx, loanID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to get loan collections", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to get collections for loan %d: %w", loanID, err)
	}

	l.Collections = collections
	return l, nil
}

func (s *loanServiceImpl) ListCollections(ctx context.Context, loanID int64) ([]Collection, error) {
	if _, err := s.repo.GetLoanByID(ctx, loanID); err != nil {
		return nil, s.loanLookupError(ctx, loanID, err)
	}

	collections, err := s.repo.ListCollections(ctx, loanID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list collections", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to list collections for loan %d: %w", loanID, err)
	}
	return collections, nil
}

func (s *loanServiceImpl) GetRepayment(ctx context.Context, loanID int64, asOf *time.Time) (repayment *Repayment, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "loan.GetRepayment", trace.WithAttributes(attribute.Int64("loan.id", loanID)))
	defer func() {
		endSpan(span, err)
	}()

	tx, err := s.repo.BeginSnapshotTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.repo.RollbackTx(ctx, tx) }()

	l, err := s.repo.GetLoanByIDInTx(ctx, tx, loanID)
	if err != nil {
		return nil, s.loanLookupError(ctx, loanID, err)
	}
	collections, err := s.repo.ListCollectionsInTx(ctx, tx, loanID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read collection ledger", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to read collections for loan %d: %w", loanID, err)
	}
	if err := s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	ref := s.now()
	if asOf != nil {
		ref = *asOf
	}
	ref = l.ReferenceDate(ref, collections)

	return s.value(ctx, "repayment", l, ref, collections)
}

func (s *loanServiceImpl) value(ctx context.Context, caller string, l *Loan, ref time.Time, collections []Collection) (*Repayment, error) {
	penalty, err := s.tenants.PenaltyROI(ctx, l.TenantID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to resolve tenant penalty rate", "loanID", l.ID, "tenantID", l.TenantID, "error", err)
		return nil, fmt.Errorf("failed to resolve penalty rate for tenant %d: %w", l.TenantID, err)
	}

	start := time.Now()
	result, err := accrual.Compute(l.Terms(penalty), ref, CollectionEvents(collections))
	monitoring.RecordAccrualRun(caller, monitoring.AccrualStatus(err), time.Since(start))
	if err != nil {
		s.logger.WarnContext(ctx, "Accrual rejected loan inputs", "loanID", l.ID, "error", err)
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("accrual.reference_date", accrual.Day(ref).Format(time.DateOnly)),
		attribute.Int("accrual.penalty_days", result.PenaltyDays),
	)

	return &Repayment{
		LoanID:        l.ID,
		Status:        l.Status,
		ReferenceDate: accrual.Day(ref),
		RepaymentDate: l.RepaymentDate,
		PenaltyROI:    penalty,
		Accrual:       result,
	}, nil
}

func (s *loanServiceImpl) RecordCollection(ctx context.Context, loanID int64, amount decimal.Decimal, collectedDate time.Time) (res *CollectionResult, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "loan.RecordCollection", trace.WithAttributes(attribute.Int64("loan.id", loanID)))
	log := s.logger.With("loanID", loanID, "amount", amount.String())
	log.InfoContext(ctx, "Recording collection")

	defer func() {
		monitoring.RecordCollection(collectionStatus(err))
		endSpan(span, err)
	}()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidPaymentAmount)
	}
	date := accrual.Day(collectedDate)
	if date.After(accrual.Day(s.now())) {
		return nil, apperrors.NewValidationError("collectedDate", "must not be in the future")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "Panic occurred during collection processing", "error", p)
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			log.WarnContext(ctx, "Rolling back collection", "error", err)
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, s.loanLookupError(ctx, loanID, err)
	}
	if l.Status == StatusClosed {
		return nil, fmt.Errorf("%w: loan %d", apperrors.ErrLoanClosed, loanID)
	}
	if date.Before(l.DisbursalDate) {
		return nil, apperrors.InvalidTerms("collectedDate", "must not be before the disbursal date")
	}

	existing, err := s.repo.ListCollectionsInTx(ctx, tx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to read collections for loan %d: %w", loanID, err)
	}

	inserted, err := s.repo.InsertCollection(ctx, tx, &Collection{
		LoanID:        loanID,
		Amount:        amount,
		CollectedDate: date,
		Status:        l.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert collection for loan %d: %w", loanID, err)
	}

	ledger := append([]Collection{*inserted}, existing...)
	ref, _ := LatestCollectionDate(ledger)
	repayment, err := s.value(ctx, "collection", l, ref, ledger)
	if err != nil {
		return nil, err
	}

	closed := !repayment.Accrual.CurrentRepayAmount.IsPositive()
	if closed {
		if err = s.repo.UpdateLoanStatusInTx(ctx, tx, loanID, StatusClosed); err != nil {
			return nil, fmt.Errorf("failed to close loan %d: %w", loanID, err)
		}
		repayment.Status = StatusClosed
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	s.publishCollectionEvents(ctx, l, inserted, repayment, closed)

	log.InfoContext(ctx, "Collection recorded", "collectionID", inserted.ID, "loanClosed", closed)
	return &CollectionResult{Collection: *inserted, Repayment: *repayment, LoanClosed: closed}, nil
}

func (s *loanServiceImpl) publishCollectionEvents(ctx context.Context, l *Loan, c *Collection, r *Repayment, closed bool) {
	now := s.now()
	recorded := event.CollectionRecordedEvent{
		CollectionID:  c.ID,
		LoanID:        l.ID,
		CustomerID:    l.CustomerID,
		TenantID:      l.TenantID,
		Amount:        c.Amount,
		CollectedDate: c.CollectedDate,
		AmountDue:     r.Accrual.CurrentRepayAmount.Round(2),
		LoanClosed:    closed,
		Timestamp:     now,
	}
	if err := s.pub.PublishCollectionRecorded(ctx, recorded); err != nil {
		s.logger.ErrorContext(ctx, "Collection recorded, but FAILED to publish event", "loanID", l.ID, "error", err)
	}

	if !closed {
		return
	}
	closedEvt := event.LoanClosedEvent{
		LoanID:     l.ID,
		CustomerID: l.CustomerID,
		ClosedOn:   c.CollectedDate,
		ExcessPaid: r.Accrual.ExcessPaid.Round(2),
		Timestamp:  now,
	}
	if err := s.pub.PublishLoanClosed(ctx, closedEvt); err != nil {
		s.logger.ErrorContext(ctx, "Loan closed, but FAILED to publish event", "loanID", l.ID, "error", err)
	}
}

func (s *loanServiceImpl) QuoteWaiver(ctx context.Context, loanID int64, settlement decimal.Decimal, asOf *time.Time) (*WaiverQuote, error) {
	repayment, err := s.GetRepayment(ctx, loanID, asOf)
	if err != nil {
		return nil, err
	}
	if repayment.Status == StatusClosed {
		return nil, fmt.Errorf("%w: loan %d", apperrors.ErrLoanClosed, loanID)
	}
	return NewWaiverQuote(loanID, repayment.ReferenceDate, repayment.Accrual, settlement)
}

func (s *loanServiceImpl) loanLookupError(ctx context.Context, loanID int64, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		s.logger.WarnContext(ctx, "Loan not found", "loanID", loanID)
		return fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
	}
	s.logger.ErrorContext(ctx, "Failed to get loan", "loanID", loanID, "error", err)
	return fmt.Errorf("failed to get loan %d: %w", loanID, err)
}

func collectionStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInvalidPaymentAmount):
		return "failure_amount"
	case errors.Is(err, apperrors.ErrLoanClosed):
		return "failure_closed"
	case errors.Is(err, apperrors.ErrNotFound):
		return "failure_not_found"
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidLoanTerms):
		return "failure_validation"
	default:
		return "failure_internal"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
