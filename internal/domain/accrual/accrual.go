// Package accrual computes what a borrower owes on a loan as of a given date.
//
// Ordinary interest accrues daily on the outstanding principal up to the
// contractual repayment date. Past that date penalty interest accrues on the
// outstanding principal instead. Every payment is applied penalty first, then
// ordinary interest, then principal, and accrual continues from the payment
// date. The package does no I/O and is safe for concurrent use.
package accrual

import (
	"fmt"
	"lending-backoffice/internal/pkg/apperrors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Result is the outstanding position of a loan at a reference date. Amounts
// are unrounded; use Rounded when presenting them.
type Result struct {
	RemainingPrincipal decimal.Decimal
	TotalInterest      decimal.Decimal
	PenaltyInterest    decimal.Decimal
	PenaltyDays        int
	CurrentRepayAmount decimal.Decimal
	ExcessPaid         decimal.Decimal
}

// Rounded returns a copy with every amount rounded to two decimal places.
func (r Result) Rounded() Result {
	return Result{
		RemainingPrincipal: r.RemainingPrincipal.Round(2),
		TotalInterest:      r.TotalInterest.Round(2),
		PenaltyInterest:    r.PenaltyInterest.Round(2),
		PenaltyDays:        r.PenaltyDays,
		CurrentRepayAmount: r.CurrentRepayAmount.Round(2),
		ExcessPaid:         r.ExcessPaid.Round(2),
	}
}

// Overdue reports whether any penalty days have accrued.
func (r Result) Overdue() bool {
	return r.PenaltyDays > 0
}

// Compute returns the accrual position of a loan as of referenceDate.
//
// Collections may be passed in any order. Collections dated after
// referenceDate have not happened yet from the reference date's point of view
// and are ignored. Dates are compared by calendar day.
func Compute(terms LoanTerms, referenceDate time.Time, collections []CollectionEvent) (Result, error) {
	if err := terms.Validate(); err != nil {
		return Result{}, err
	}
	if referenceDate.IsZero() {
		return Result{}, apperrors.InvalidTerms("referenceDate", "is required")
	}

	ref := Day(referenceDate)
	if ref.Before(Day(terms.DisbursalDate)) {
		return Result{}, apperrors.InvalidTerms("referenceDate", "must not be before disbursalDate")
	}

	payments, err := chronological(terms, ref, collections)
	if err != nil {
		return Result{}, err
	}

	c := calculator{terms: terms, due: Day(terms.RepaymentDate)}
	if len(payments) == 0 {
		return c.withoutPayments(ref).result(), nil
	}

	var s state
	if payments[0].Date.After(c.due) {
		s = c.foldOverdue(payments)
	} else {
		s = c.foldFromDisbursal(payments)
	}
	return c.penaltyTo(s, ref).result(), nil
}

// chronological validates the collections and returns those on or before ref,
// oldest first, with dates normalised.
func chronological(terms LoanTerms, ref time.Time, collections []CollectionEvent) ([]CollectionEvent, error) {
	disbursal := Day(terms.DisbursalDate)
	out := make([]CollectionEvent, 0, len(collections))
	for i, ev := range collections {
		if ev.Amount.IsNegative() {
			return nil, apperrors.InvalidTerms(fmt.Sprintf("collections[%d].amount", i), "must not be negative")
		}
		day := Day(ev.Date)
		if ev.Date.IsZero() || day.Before(disbursal) {
			return nil, apperrors.InvalidTerms(fmt.Sprintf("collections[%d].date", i), "must not be before disbursalDate")
		}
		if day.After(ref) {
			continue
		}
		ev.Date = day
		out = append(out, ev)
	}
	slices.SortStableFunc(out, func(a, b CollectionEvent) int {
		return a.Date.Compare(b.Date)
	})
	return out, nil
}

// state is the running position carried through the fold. Steps return a new
// state rather than mutating the old one.
type state struct {
	principal   decimal.Decimal
	interest    decimal.Decimal
	penalty     decimal.Decimal
	penaltyDays int
	excess      decimal.Decimal
	cursor      time.Time
}

func (s state) result() Result {
	return Result{
		RemainingPrincipal: s.principal,
		TotalInterest:      s.interest,
		PenaltyInterest:    s.penalty,
		PenaltyDays:        s.penaltyDays,
		CurrentRepayAmount: s.principal.Add(s.interest).Add(s.penalty),
		ExcessPaid:         s.excess,
	}
}

func (s state) pay(amount decimal.Decimal, at time.Time) state {
	alloc := Allocate(amount, Dues{Penalty: s.penalty, Interest: s.interest, Principal: s.principal})
	return state{
		principal:   alloc.Remaining.Principal,
		interest:    alloc.Remaining.Interest,
		penalty:     alloc.Remaining.Penalty,
		penaltyDays: s.penaltyDays,
		excess:      s.excess.Add(alloc.Excess),
		cursor:      at,
	}
}

type calculator struct {
	terms LoanTerms
	due   time.Time
}

func (c calculator) withoutPayments(ref time.Time) state {
	disbursal := Day(c.terms.DisbursalDate)
	s := state{
		principal: c.terms.Principal,
		interest:  decimal.Zero,
		penalty:   decimal.Zero,
		excess:    decimal.Zero,
		cursor:    disbursal,
	}
	if !ref.After(c.due) {
		s.interest = accrue(s.principal, c.terms.DailyROI, DaysBetween(ref, disbursal))
		s.cursor = ref
		return s
	}
	s.interest = accrue(s.principal, c.terms.DailyROI, DaysBetween(c.due, disbursal))
	s.cursor = c.due
	return c.penaltyTo(s, ref)
}

// foldOverdue handles histories whose first payment lands after the due date.
// Ordinary interest for the whole tenure is charged up front.
func (c calculator) foldOverdue(payments []CollectionEvent) state {
	s := state{
		principal: c.terms.Principal,
		interest:  accrue(c.terms.Principal, c.terms.DailyROI, c.terms.TenureDays),
		penalty:   decimal.Zero,
		excess:    decimal.Zero,
		cursor:    c.due,
	}
	for _, p := range payments {
		s = c.penaltyTo(s, p.Date).pay(p.Amount, p.Date)
	}
	return s
}

// foldFromDisbursal handles histories with at least one payment on or before
// the due date. Each payment settles the interest of its own gap since the
// previous payment; interest left unpaid from earlier gaps stays outstanding.
// A payment after the due date is charged penalty for its whole gap, even
// when the gap started before the due date.
func (c calculator) foldFromDisbursal(payments []CollectionEvent) state {
	s := state{
		principal: c.terms.Principal,
		interest:  decimal.Zero,
		penalty:   decimal.Zero,
		excess:    decimal.Zero,
		cursor:    Day(c.terms.DisbursalDate),
	}
	for _, p := range payments {
		if p.Date.After(c.due) {
			s = c.penaltyTo(s, p.Date).pay(p.Amount, p.Date)
		} else {
			s = c.payGap(s, p.Amount, p.Date)
		}
	}
	return c.ordinaryTo(s, c.due)
}

// payGap accrues ordinary interest from the cursor to `at` and applies amount
// to that interest, then to principal.
func (c calculator) payGap(s state, amount decimal.Decimal, at time.Time) state {
	gap := decimal.Zero
	if days := DaysBetween(at, s.cursor); days > 0 {
		gap = accrue(s.principal, c.terms.DailyROI, days)
	}
	alloc := Allocate(amount, Dues{Interest: gap, Principal: s.principal})
	next := s
	next.interest = s.interest.Add(alloc.Remaining.Interest)
	next.principal = alloc.Remaining.Principal
	next.excess = s.excess.Add(alloc.Excess)
	next.cursor = at
	return next
}

// ordinaryTo accrues ordinary interest on the outstanding principal from the
// cursor up to `to`. It never accrues past the due date.
func (c calculator) ordinaryTo(s state, to time.Time) state {
	if to.After(c.due) {
		to = c.due
	}
	if !s.cursor.Before(to) {
		return s
	}
	next := s
	next.interest = s.interest.Add(accrue(s.principal, c.terms.DailyROI, DaysBetween(to, s.cursor)))
	next.cursor = to
	return next
}

// penaltyTo accrues penalty interest on the outstanding principal from the
// cursor up to `to`. Callers move the cursor to the due date first unless the
// gap is meant to be charged at the penalty rate from its start.
func (c calculator) penaltyTo(s state, to time.Time) state {
	days := DaysBetween(to, s.cursor)
	if days <= 0 {
		return s
	}
	next := s
	next.penalty = s.penalty.Add(accrue(s.principal, c.terms.PenaltyROI, days))
	next.penaltyDays = s.penaltyDays + days
	next.cursor = to
	return next
}
