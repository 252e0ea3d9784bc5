package accrual

import "github.com/shopspring/decimal"

// Dues are the outstanding buckets a payment is applied against, in order.
type Dues struct {
	Penalty   decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal
}

// Allocation records how one payment was split across Dues.
type Allocation struct {
	ToPenalty   decimal.Decimal
	ToInterest  decimal.Decimal
	ToPrincipal decimal.Decimal
	Excess      decimal.Decimal
	Remaining   Dues
}

// Allocate applies amount to penalty, then ordinary interest, then principal.
// No bucket is taken below zero; whatever is left after principal is Excess.
func Allocate(amount decimal.Decimal, due Dues) Allocation {
	left := decimal.Max(amount, decimal.Zero)

	toPenalty, left := absorb(left, due.Penalty)
	toInterest, left := absorb(left, due.Interest)
	toPrincipal, left := absorb(left, due.Principal)

	return Allocation{
		ToPenalty:   toPenalty,
		ToInterest:  toInterest,
		ToPrincipal: toPrincipal,
		Excess:      left,
		Remaining: Dues{
			Penalty:   nonNegative(due.Penalty).Sub(toPenalty),
			Interest:  nonNegative(due.Interest).Sub(toInterest),
			Principal: nonNegative(due.Principal).Sub(toPrincipal),
		},
	}
}

func absorb(amount, due decimal.Decimal) (applied, left decimal.Decimal) {
	applied = decimal.Min(amount, nonNegative(due))
	return applied, amount.Sub(applied)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	return decimal.Max(d, decimal.Zero)
}
