package dto

import (
	"fmt"
	"lending-backoffice/internal/domain/customer"
	"strconv"
	"strings"
	"time"
)

type CreateCustomerRequest struct {
	TenantID int64  `json:"tenantId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

func (r *CreateCustomerRequest) Validate() error {
	if r.TenantID <= 0 {
		return fmt.Errorf("tenantId must be positive")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("email cannot be empty")
	}
	return nil
}

type CustomerResponse struct {
	CustomerID string    `json:"customerId"`
	TenantID   string    `json:"tenantId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsOverdue  bool      `json:"isOverdue"`
	Active     bool      `json:"active"`
	LoanID     *string   `json:"loanId,omitempty"`
	CreateDate time.Time `json:"createDate"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CustomerLoanResponse is the portal view of a borrower's current loan.
type CustomerLoanResponse struct {
	Customer  CustomerResponse  `json:"customer"`
	Loan      LoanResponse      `json:"loan"`
	Repayment RepaymentResponse `json:"repayment"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}

	var loanIDStr *string
	if cust.LoanID != nil {
		s := strconv.FormatInt(*cust.LoanID, 10)
		loanIDStr = &s
	}

	return CustomerResponse{
		CustomerID: strconv.FormatInt(cust.CustomerID, 10),
		TenantID:   strconv.FormatInt(cust.TenantID, 10),
		Name:       cust.Name,
		Email:      cust.Email,
		IsOverdue:  cust.IsOverdue,
		Active:     cust.Active,
		LoanID:     loanIDStr,
		CreateDate: cust.CreateDate,
		UpdatedAt:  cust.UpdatedAt,
	}
}
