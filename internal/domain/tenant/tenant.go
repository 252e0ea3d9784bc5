package tenant

import (
	"time"

	"github.com/shopspring/decimal"
)

type Tenant struct {
	ID         int64
	Name       string
	PenaltyROI *decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
