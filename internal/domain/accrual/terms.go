package accrual

import (
	"lending-backoffice/internal/pkg/apperrors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPenaltyROI is the penalty rate, in percent per day, used when a
// tenant has not configured one.
var DefaultPenaltyROI = decimal.RequireFromString("1.25")

// LoanTerms are the contractual inputs of a single loan.
// Rates are percent-per-day scalars: 1.5 means 1.5% of the principal per day.
type LoanTerms struct {
	Principal     decimal.Decimal
	DisbursalDate time.Time
	RepaymentDate time.Time
	TenureDays    int
	DailyROI      decimal.Decimal
	PenaltyROI    decimal.Decimal
}

// CollectionEvent is one payment applied against a loan.
type CollectionEvent struct {
	Amount decimal.Decimal
	Date   time.Time
	Status string
}

// PenaltyOrDefault returns the configured penalty rate, or DefaultPenaltyROI
// when none is set.
func PenaltyOrDefault(configured *decimal.Decimal) decimal.Decimal {
	if configured == nil {
		return DefaultPenaltyROI
	}
	return *configured
}

// Validate rejects terms the engine cannot compute on.
func (t LoanTerms) Validate() error {
	switch {
	case t.Principal.IsNegative():
		return apperrors.InvalidTerms("principal", "must not be negative")
	case t.DailyROI.IsNegative():
		return apperrors.InvalidTerms("dailyRoi", "must not be negative")
	case t.PenaltyROI.IsNegative():
		return apperrors.InvalidTerms("penaltyRoi", "must not be negative")
	case t.TenureDays < 0:
		return apperrors.InvalidTerms("tenureDays", "must not be negative")
	case t.DisbursalDate.IsZero():
		return apperrors.InvalidTerms("disbursalDate", "is required")
	case t.RepaymentDate.IsZero():
		return apperrors.InvalidTerms("repaymentDate", "is required")
	case Day(t.RepaymentDate).Before(Day(t.DisbursalDate)):
		return apperrors.InvalidTerms("repaymentDate", "must not be before disbursalDate")
	}
	return nil
}

// Day truncates t to midnight UTC of its own calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from earlier to later. The result is
// negative when later precedes earlier.
func DaysBetween(later, earlier time.Time) int {
	return int(Day(later).Sub(Day(earlier)) / (24 * time.Hour))
}

var percent = decimal.New(1, -2)

func accrue(amount, ratePercent decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return amount.Mul(ratePercent).Mul(decimal.NewFromInt(int64(days))).Mul(percent)
}
