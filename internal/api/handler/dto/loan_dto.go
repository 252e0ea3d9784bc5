package dto

import (
	"fmt"
	"lending-backoffice/internal/domain/loan"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return t, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric format for %s", field)
	}
	return d, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type CreateLoanRequest struct {
	TenantID      int64  `json:"tenantId,omitempty"`
	CustomerID    int64  `json:"customerId"`
	Principal     string `json:"principal" example:"10000"`
	DailyROI      string `json:"dailyRoi" example:"1"`
	TenureDays    int    `json:"tenureDays" example:"30"`
	DisbursalDate string `json:"disbursalDate" example:"2024-01-01"`
}

// ToParams validates the request and converts it into loan creation params.
func (r *CreateLoanRequest) ToParams() (loan.CreateLoanParams, error) {
	if r.CustomerID <= 0 {
		return loan.CreateLoanParams{}, fmt.Errorf("customerId must be positive")
	}
	if r.TenureDays <= 0 {
		return loan.CreateLoanParams{}, fmt.Errorf("tenureDays must be positive")
	}
	principal, err := parseAmount("principal", r.Principal)
	if err != nil {
		return loan.CreateLoanParams{}, err
	}
	if !principal.IsPositive() {
		return loan.CreateLoanParams{}, fmt.Errorf("principal must be greater than zero")
	}
	roi, err := parseAmount("dailyRoi", r.DailyROI)
	if err != nil {
		return loan.CreateLoanParams{}, err
	}
	if roi.IsNegative() {
		return loan.CreateLoanParams{}, fmt.Errorf("dailyRoi must not be negative")
	}
	disbursal, err := ParseDate(r.DisbursalDate)
	if err != nil {
		return loan.CreateLoanParams{}, fmt.Errorf("disbursalDate: %w", err)
	}
	return loan.CreateLoanParams{
		TenantID:      r.TenantID,
		CustomerID:    r.CustomerID,
		Principal:     principal,
		DailyROI:      roi,
		TenureDays:    r.TenureDays,
		DisbursalDate: disbursal,
	}, nil
}

type RecordCollectionRequest struct {
	Amount string `json:"amount" example:"5000"`
	// CollectedDate defaults to today when empty.
	CollectedDate string `json:"collectedDate,omitempty" example:"2024-01-20"`
}

func (r *RecordCollectionRequest) Parse(today time.Time) (decimal.Decimal, time.Time, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	if r.CollectedDate == "" {
		return amount, today, nil
	}
	date, err := ParseDate(r.CollectedDate)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("collectedDate: %w", err)
	}
	return amount, date, nil
}

type WaiverQuoteRequest struct {
	SettlementAmount string `json:"settlementAmount" example:"12000"`
	AsOf             string `json:"asOf,omitempty" example:"2024-02-10"`
}

func (r *WaiverQuoteRequest) Parse() (decimal.Decimal, *time.Time, error) {
	settlement, err := parseAmount("settlementAmount", r.SettlementAmount)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if r.AsOf == "" {
		return settlement, nil, nil
	}
	asOf, err := ParseDate(r.AsOf)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("asOf: %w", err)
	}
	return settlement, &asOf, nil
}

type LoanResponse struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	CustomerID    string    `json:"customerId"`
	Principal     string    `json:"principal"`
	DailyROI      string    `json:"dailyRoi"`
	TenureDays    int       `json:"tenureDays"`
	DisbursalDate string    `json:"disbursalDate"`
	RepaymentDate string    `json:"repaymentDate"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type RepaymentResponse struct {
	LoanID             string `json:"loanId"`
	Status             string `json:"status"`
	ReferenceDate      string `json:"referenceDate"`
	RepaymentDate      string `json:"repaymentDate"`
	PenaltyROI         string `json:"penaltyRoi"`
	RemainingPrincipal string `json:"remainingPrincipal"`
	TotalInterest      string `json:"totalInterest"`
	PenaltyInterest    string `json:"penaltyInterest"`
	PenaltyDays        int    `json:"penaltyDays"`
	CurrentRepayAmount string `json:"currentRepayAmount"`
	ExcessPaid         string `json:"excessPaid"`
	Overdue            bool   `json:"overdue"`
}

type CollectionResponse struct {
	ID            string    `json:"id"`
	LoanID        string    `json:"loanId"`
	Amount        string    `json:"amount"`
	CollectedDate string    `json:"collectedDate"`
	LoanStatus    string    `json:"loanStatus"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CollectionResultResponse struct {
	Collection CollectionResponse `json:"collection"`
	Repayment  RepaymentResponse  `json:"repayment"`
	LoanClosed bool               `json:"loanClosed"`
}

type WaiverQuoteResponse struct {
	LoanID           string `json:"loanId"`
	ReferenceDate    string `json:"referenceDate"`
	AmountDue        string `json:"amountDue"`
	SettlementAmount string `json:"settlementAmount"`
	WaiverAmount     string `json:"waiverAmount"`
	PenaltyWaived    string `json:"penaltyWaived"`
	InterestWaived   string `json:"interestWaived"`
	PrincipalWaived  string `json:"principalWaived"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	return LoanResponse{
		ID:            strconv.FormatInt(l.ID, 10),
		TenantID:      strconv.FormatInt(l.TenantID, 10),
		CustomerID:    strconv.FormatInt(l.CustomerID, 10),
		Principal:     money(l.Principal),
		DailyROI:      l.DailyROI.String(),
		TenureDays:    l.TenureDays,
		DisbursalDate: l.DisbursalDate.Format(DateLayout),
		RepaymentDate: l.RepaymentDate.Format(DateLayout),
		Status:        string(l.Status),
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

// NewRepaymentResponse presents the accrual result rounded to cents. The
// engine itself works unrounded.
func NewRepaymentResponse(r *loan.Repayment) RepaymentResponse {
	result := r.Accrual.Rounded()
	return RepaymentResponse{
		LoanID:             strconv.FormatInt(r.LoanID, 10),
		Status:             string(r.Status),
		ReferenceDate:      r.ReferenceDate.Format(DateLayout),
		RepaymentDate:      r.RepaymentDate.Format(DateLayout),
		PenaltyROI:         r.PenaltyROI.String(),
		RemainingPrincipal: money(result.RemainingPrincipal),
		TotalInterest:      money(result.TotalInterest),
		PenaltyInterest:    money(result.PenaltyInterest),
		PenaltyDays:        result.PenaltyDays,
		CurrentRepayAmount: money(result.CurrentRepayAmount),
		ExcessPaid:         money(result.ExcessPaid),
		Overdue:            result.Overdue(),
	}
}

func NewCollectionResponse(c *loan.Collection) CollectionResponse {
	return CollectionResponse{
		ID:            strconv.FormatInt(c.ID, 10),
		LoanID:        strconv.FormatInt(c.LoanID, 10),
		Amount:        money(c.Amount),
		CollectedDate: c.CollectedDate.Format(DateLayout),
		LoanStatus:    string(c.Status),
		CreatedAt:     c.CreatedAt,
	}
}

func NewCollectionResultResponse(r *loan.CollectionResult) CollectionResultResponse {
	return CollectionResultResponse{
		Collection: NewCollectionResponse(&r.Collection),
		Repayment:  NewRepaymentResponse(&r.Repayment),
		LoanClosed: r.LoanClosed,
	}
}

func NewWaiverQuoteResponse(q *loan.WaiverQuote) WaiverQuoteResponse {
	return WaiverQuoteResponse{
		LoanID:           strconv.FormatInt(q.LoanID, 10),
		ReferenceDate:    q.ReferenceDate.Format(DateLayout),
		AmountDue:        money(q.AmountDue),
		SettlementAmount: money(q.SettlementAmount),
		WaiverAmount:     money(q.WaiverAmount),
		PenaltyWaived:    money(q.PenaltyWaived),
		InterestWaived:   money(q.InterestWaived),
		PrincipalWaived:  money(q.PrincipalWaived),
	}
}
