package event

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoutingKeyCustomerCreated    = "customer.created"
	RoutingKeyCustomerUpdated    = "customer.updated"
	RoutingKeyCollectionRecorded = "collection.recorded"
	RoutingKeyLoanClosed         = "loan.closed"
	RoutingKeyLoanOverdue        = "loan.overdue"
)

type CustomerEventPayload struct {
	CustomerID int64     `json:"customerId"`
	TenantID   int64     `json:"tenantId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsOverdue  bool      `json:"isOverdue"`
	Active     bool      `json:"active"`
	LoanID     *int64    `json:"loanId,omitempty"`
	CreateDate time.Time `json:"createDate"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CustomerCreatedEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type CustomerUpdatedEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

// CollectionRecordedEvent carries the amounts a payment receipt shows.
type CollectionRecordedEvent struct {
	CollectionID  int64           `json:"collectionId"`
	LoanID        int64           `json:"loanId"`
	CustomerID    int64           `json:"customerId"`
	TenantID      int64           `json:"tenantId"`
	Amount        decimal.Decimal `json:"amount"`
	CollectedDate time.Time       `json:"collectedDate"`
	AmountDue     decimal.Decimal `json:"amountDue"`
	LoanClosed    bool            `json:"loanClosed"`
	Timestamp     time.Time       `json:"timestamp"`
}

type LoanClosedEvent struct {
	LoanID     int64           `json:"loanId"`
	CustomerID int64           `json:"customerId"`
	ClosedOn   time.Time       `json:"closedOn"`
	ExcessPaid decimal.Decimal `json:"excessPaid"`
	Timestamp  time.Time       `json:"timestamp"`
}

type LoanOverdueEvent struct {
	LoanID      int64           `json:"loanId"`
	CustomerID  int64           `json:"customerId"`
	PenaltyDays int             `json:"penaltyDays"`
	AmountDue   decimal.Decimal `json:"amountDue"`
	Timestamp   time.Time       `json:"timestamp"`
}
