package batch

import (
	"context"
	"errors"
	"fmt"
	"lending-backoffice/internal/domain/accrual"
	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/event"
	"lending-backoffice/internal/infrastructure/monitoring"
	"lending-backoffice/internal/notification"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultWorkers = 10

type ActiveLoanLister interface {
	GetAllActiveLoanIDs(ctx context.Context) ([]int64, error)
}

type RepaymentReader interface {
	GetRepayment(ctx context.Context, loanID int64, asOf *time.Time) (*loan.Repayment, error)
}

type ReminderJobConfig struct {
	LeadDays int
	Workers  int
}

// ReminderJob values every active loan as of today, keeps the customer's
// overdue flag in line with the accrual result and emails reminders for
// loans that are overdue or due within LeadDays.
type ReminderJob struct {
	loans           ActiveLoanLister
	repayments      RepaymentReader
	customerService customer.CustomerService
	sender          notification.Sender
	pub             event.EventPublisher
	cfg             ReminderJobConfig
	logger          *slog.Logger
	now             func() time.Time
}

type reminderStats struct {
	processed, overdue, flagged, cleared, reminded, errors atomic.Int32
}

func NewReminderJob(
	loans ActiveLoanLister,
	repayments RepaymentReader,
	customerSvc customer.CustomerService,
	sender notification.Sender,
	pub event.EventPublisher,
	cfg ReminderJobConfig,
	logger *slog.Logger,
) *ReminderJob {
	if loans == nil || repayments == nil || customerSvc == nil || sender == nil || logger == nil {
		panic("ReminderJob dependencies cannot be nil")
	}
	if pub == nil {
		pub = event.NewLogPublisher(logger)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &ReminderJob{
		loans:           loans,
		repayments:      repayments,
		customerService: customerSvc,
		sender:          sender,
		pub:             pub,
		cfg:             cfg,
		logger:          logger.With("job", "RepaymentReminder"),
		now:             time.Now,
	}
}

func (j *ReminderJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting repayment reminder job.")

	activeLoanIDs, err := j.loans.GetAllActiveLoanIDs(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get active loan IDs, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to get active loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched active loan IDs.", slog.Int("count", len(activeLoanIDs)))

	if len(activeLoanIDs) == 0 {
		j.logger.InfoContext(ctx, "No active loans found to process.")
		return nil
	}

	today := accrual.Day(j.now())
	ids := make(chan int64)
	var (
		wg    sync.WaitGroup
		stats reminderStats
	)
	for range min(j.cfg.Workers, len(activeLoanIDs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				j.processLoan(ctx, id, today, &stats)
			}
		}()
	}

feed:
	for _, id := range activeLoanIDs {
		select {
		case ids <- id:
		case <-ctx.Done():
			j.logger.WarnContext(ctx, "Reminder job cancelled before all loans were dispatched.", slog.Any("error", ctx.Err()))
			break feed
		}
	}
	close(ids)
	wg.Wait()

	errorCount := stats.errors.Load()
	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("total_active_loans", len(activeLoanIDs)),
		slog.Int("loans_processed", int(stats.processed.Load())),
		slog.Int("loans_overdue", int(stats.overdue.Load())),
		slog.Int("customers_flagged_overdue", int(stats.flagged.Load())),
		slog.Int("customers_cleared", int(stats.cleared.Load())),
		slog.Int("reminders_sent", int(stats.reminded.Load())),
		slog.Int("errors_encountered", int(errorCount)),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Repayment reminder job finished with errors.")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	summaryLog.InfoContext(ctx, "Repayment reminder job finished successfully.")
	return nil
}

func (j *ReminderJob) processLoan(ctx context.Context, loanID int64, today time.Time, stats *reminderStats) {
	logCtx := j.logger.With(slog.Int64("loanID", loanID))

	repayment, err := j.repayments.GetRepayment(ctx, loanID, &today)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "Loan not found while computing repayment (potentially closed concurrently?)", slog.Any("error", err))
		} else {
			logCtx.ErrorContext(ctx, "Failed to compute repayment", slog.Any("error", err))
			stats.errors.Add(1)
		}
		return
	}
	result := repayment.Accrual.Rounded()
	overdue := result.Overdue()
	if overdue {
		stats.overdue.Add(1)
	}

	cust, err := j.customerService.FindCustomerByLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "No customer found linked to this loan (data inconsistency?)", slog.Any("error", err))
		} else {
			logCtx.ErrorContext(ctx, "Failed to find customer by loan", slog.Any("error", err))
			stats.errors.Add(1)
		}
		return
	}
	logCtx = logCtx.With(slog.Int64("customerID", cust.CustomerID))

	if cust.IsOverdue != overdue {
		logCtx.InfoContext(ctx, "Updating customer overdue status.", slog.Bool("new_status", overdue))
		if err := j.customerService.UpdateOverdue(ctx, cust.CustomerID, overdue); err != nil {
			logCtx.ErrorContext(ctx, "Failed to update customer overdue status", slog.Any("error", err))
			stats.errors.Add(1)
			return
		}
		if overdue {
			stats.flagged.Add(1)
			j.publishOverdue(ctx, loanID, cust.CustomerID, result)
		} else {
			stats.cleared.Add(1)
		}
	}

	daysToDue := accrual.DaysBetween(repayment.RepaymentDate, today)
	if result.CurrentRepayAmount.IsPositive() && (overdue || daysToDue <= j.cfg.LeadDays) {
		reminder := notification.Reminder{
			To:            cust.Email,
			Name:          cust.Name,
			LoanID:        loanID,
			AmountDue:     result.CurrentRepayAmount,
			RepaymentDate: repayment.RepaymentDate,
			PenaltyDays:   result.PenaltyDays,
		}
		if err := j.sender.SendReminder(ctx, reminder); err != nil {
			logCtx.ErrorContext(ctx, "Failed to send reminder", slog.Any("error", err))
			monitoring.RecordReminder("failure")
			stats.errors.Add(1)
			return
		}
		monitoring.RecordReminder("sent")
		stats.reminded.Add(1)
	}

	stats.processed.Add(1)
}

func (j *ReminderJob) publishOverdue(ctx context.Context, loanID, customerID int64, result accrual.Result) {
	evt := event.LoanOverdueEvent{
		LoanID:      loanID,
		CustomerID:  customerID,
		PenaltyDays: result.PenaltyDays,
		AmountDue:   result.CurrentRepayAmount,
		Timestamp:   j.now(),
	}
	if err := j.pub.PublishLoanOverdue(ctx, evt); err != nil {
		j.logger.ErrorContext(ctx, "Customer flagged overdue, but FAILED to publish event", slog.Int64("loanID", loanID), slog.Any("error", err))
	}
}
