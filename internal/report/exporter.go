package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"lending-backoffice/internal/domain/accrual"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/infrastructure/monitoring"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout   = "2006-01-02"
	exportCaller = "export"
)

var header = []string{
	"loan_id",
	"customer_id",
	"tenant_id",
	"principal",
	"disbursal_date",
	"repayment_date",
	"status",
	"days_past_due",
	"outstanding_principal",
	"interest",
	"penalty",
	"total_outstanding",
}

// LoanLister returns every loan with its collections attached.
type LoanLister interface {
	ListLoansForExport(ctx context.Context) ([]loan.Loan, error)
}

type PenaltyRateReader interface {
	PenaltyROI(ctx context.Context, tenantID int64) (decimal.Decimal, error)
}

// Exporter writes the credit-bureau file: one row per loan valued at asOf.
type Exporter struct {
	loans  LoanLister
	rates  PenaltyRateReader
	logger *slog.Logger
}

func NewExporter(loans LoanLister, rates PenaltyRateReader, logger *slog.Logger) *Exporter {
	return &Exporter{
		loans:  loans,
		rates:  rates,
		logger: logger.With("component", "CreditBureauExporter"),
	}
}

// Export writes the header followed by one row per loan and returns the
// number of loan rows written. Closed loans are valued at their last
// collection date. Loans whose terms cannot be valued are skipped and logged.
func (e *Exporter) Export(ctx context.Context, w io.Writer, asOf time.Time) (int, error) {
	loans, err := e.loans.ListLoansForExport(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list loans for export: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	rates := make(map[int64]decimal.Decimal)
	rows := 0
	for i := range loans {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		l := &loans[i]

		rate, ok := rates[l.TenantID]
		if !ok {
			rate, err = e.rates.PenaltyROI(ctx, l.TenantID)
			if err != nil {
				return rows, fmt.Errorf("failed to resolve penalty rate for tenant %d: %w", l.TenantID, err)
			}
			rates[l.TenantID] = rate
		}

		ref := l.ReferenceDate(asOf, l.Collections)
		start := time.Now()
		result, err := accrual.Compute(l.Terms(rate), ref, loan.CollectionEvents(l.Collections))
		monitoring.RecordAccrualRun(exportCaller, monitoring.AccrualStatus(err), time.Since(start))
		if err != nil {
			e.logger.WarnContext(ctx, "Skipping loan that could not be valued", slog.Int64("loanID", l.ID), slog.Any("error", err))
			continue
		}

		if err := cw.Write(row(l, result.Rounded())); err != nil {
			return rows, err
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, err
	}
	e.logger.InfoContext(ctx, "Credit bureau export written", slog.Int("rows", rows), slog.String("asOf", asOf.Format(dateLayout)))
	return rows, nil
}

func row(l *loan.Loan, r accrual.Result) []string {
	return []string{
		strconv.FormatInt(l.ID, 10),
		strconv.FormatInt(l.CustomerID, 10),
		strconv.FormatInt(l.TenantID, 10),
		l.Principal.StringFixed(2),
		l.DisbursalDate.Format(dateLayout),
		l.RepaymentDate.Format(dateLayout),
		string(l.Status),
		strconv.Itoa(r.PenaltyDays),
		r.RemainingPrincipal.StringFixed(2),
		r.TotalInterest.StringFixed(2),
		r.PenaltyInterest.StringFixed(2),
		r.CurrentRepayAmount.StringFixed(2),
	}
}
