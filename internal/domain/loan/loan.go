package loan

import (
	"lending-backoffice/internal/domain/accrual"
	"lending-backoffice/internal/pkg/apperrors"
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	StatusActive LoanStatus = "ACTIVE"
	StatusClosed LoanStatus = "CLOSED"
)

type Loan struct {
	ID            int64
	TenantID      int64
	CustomerID    int64
	Principal     decimal.Decimal
	DailyROI      decimal.Decimal
	TenureDays    int
	DisbursalDate time.Time
	RepaymentDate time.Time
	Status        LoanStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Collections   []Collection
}

// Collection is one payment in the ledger. Status records the loan status at
// the time the payment was taken.
type Collection struct {
	ID            int64
	LoanID        int64
	Amount        decimal.Decimal
	CollectedDate time.Time
	Status        LoanStatus
	CreatedAt     time.Time
}

type CreateLoanParams struct {
	TenantID      int64
	CustomerID    int64
	Principal     decimal.Decimal
	DailyROI      decimal.Decimal
	TenureDays    int
	DisbursalDate time.Time
}

// NewLoan derives the repayment date from the disbursal date and tenure and
// checks the terms the same way the accrual engine does.
func NewLoan(p CreateLoanParams) (*Loan, error) {
	if !p.Principal.IsPositive() {
		return nil, apperrors.InvalidTerms("principal", "must be positive")
	}
	if p.TenureDays <= 0 {
		return nil, apperrors.InvalidTerms("tenureDays", "must be positive")
	}

	disbursal := accrual.Day(p.DisbursalDate)
	l := &Loan{
		TenantID:      p.TenantID,
		CustomerID:    p.CustomerID,
		Principal:     p.Principal,
		DailyROI:      p.DailyROI,
		TenureDays:    p.TenureDays,
		DisbursalDate: disbursal,
		RepaymentDate: disbursal.AddDate(0, 0, p.TenureDays),
		Status:        StatusActive,
	}
	if err := l.Terms(accrual.DefaultPenaltyROI).Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loan) Terms(penaltyROI decimal.Decimal) accrual.LoanTerms {
	return accrual.LoanTerms{
		Principal:     l.Principal,
		DisbursalDate: l.DisbursalDate,
		RepaymentDate: l.RepaymentDate,
		TenureDays:    l.TenureDays,
		DailyROI:      l.DailyROI,
		PenaltyROI:    penaltyROI,
	}
}

// ReferenceDate picks the date a loan is valued at. Closed loans are frozen at
// their most recent collection; open loans use asOf.
func (l *Loan) ReferenceDate(asOf time.Time, collections []Collection) time.Time {
	if l.Status == StatusClosed {
		if last, ok := LatestCollectionDate(collections); ok {
			return last
		}
	}
	return asOf
}

func LatestCollectionDate(collections []Collection) (time.Time, bool) {
	var latest time.Time
	for _, c := range collections {
		if c.CollectedDate.After(latest) {
			latest = c.CollectedDate
		}
	}
	return latest, !latest.IsZero()
}

func CollectionEvents(collections []Collection) []accrual.CollectionEvent {
	events := make([]accrual.CollectionEvent, 0, len(collections))
	for _, c := range collections {
		events = append(events, accrual.CollectionEvent{
			Amount: c.Amount,
			Date:   c.CollectedDate,
			Status: string(c.Status),
		})
	}
	return events
}

// Repayment is the accrual position of a loan at ReferenceDate.
type Repayment struct {
	LoanID        int64
	Status        LoanStatus
	ReferenceDate time.Time
	RepaymentDate time.Time
	PenaltyROI    decimal.Decimal
	Accrual       accrual.Result
}

// WaiverQuote splits the amount to be written off when a borrower settles for
// less than the full amount due. Penalty is waived first, then interest, then
// principal.
type WaiverQuote struct {
	LoanID           int64
	ReferenceDate    time.Time
	AmountDue        decimal.Decimal
	SettlementAmount decimal.Decimal
	WaiverAmount     decimal.Decimal
	PenaltyWaived    decimal.Decimal
	InterestWaived   decimal.Decimal
	PrincipalWaived  decimal.Decimal
}

func NewWaiverQuote(loanID int64, ref time.Time, result accrual.Result, settlement decimal.Decimal) (*WaiverQuote, error) {
	if !settlement.IsPositive() {
		return nil, apperrors.NewValidationError("settlementAmount", "must be positive")
	}
	if settlement.GreaterThan(result.CurrentRepayAmount) {
		return nil, apperrors.NewValidationError("settlementAmount", "must not exceed the amount due")
	}

	waiver := result.CurrentRepayAmount.Sub(settlement)
	split := accrual.Allocate(waiver, accrual.Dues{
		Penalty:   result.PenaltyInterest,
		Interest:  result.TotalInterest,
		Principal: result.RemainingPrincipal,
	})

	return &WaiverQuote{
		LoanID:           loanID,
		ReferenceDate:    ref,
		AmountDue:        result.CurrentRepayAmount,
		SettlementAmount: settlement,
		WaiverAmount:     waiver,
		PenaltyWaived:    split.ToPenalty,
		InterestWaived:   split.ToInterest,
		PrincipalWaived:  split.ToPrincipal,
	}, nil
}
