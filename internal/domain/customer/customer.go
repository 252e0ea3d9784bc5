package customer

import "time"

type Customer struct {
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

func NewCustomer(tenantID int64, name, email string) *Customer {
	now := time.Now()
	return &Customer{
		TenantID:   tenantID,
		Name:       name,
		Email:      email,
		IsOverdue:  false,
		Active:     true,
		LoanID:     nil,
		CreateDate: now,
		UpdatedAt:  now,
	}
}

func (c *Customer) AssignLoan(loanID int64) {
	c.LoanID = &loanID
	c.UpdatedAt = time.Now()
}

// SetOverdueStatus reports whether the flag changed.
func (c *Customer) SetOverdueStatus(isOverdue bool) bool {
	if c.IsOverdue == isOverdue {
		return false
	}
	c.IsOverdue = isOverdue
	c.UpdatedAt = time.Now()
	return true
}
