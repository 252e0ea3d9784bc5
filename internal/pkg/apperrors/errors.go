package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	// ErrInvalidPaymentAmount covers non-positive collections and settlement
	// offers above the amount due.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	ErrLoanClosed = errors.New("loan is already closed")

	// ErrInvalidLoanTerms marks inputs the accrual engine refuses to compute on,
	// such as a repayment date before disbursal or a negative rate.
	ErrInvalidLoanTerms = errors.New("invalid loan terms")

	ErrUnauthorized = errors.New("unauthorized")

	ErrConflict = errors.New("resource conflict")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// InvalidTerms wraps ErrInvalidLoanTerms with the offending field so callers
// can surface it as a field-level validation failure.
func InvalidTerms(field, message string) error {
	return fmt.Errorf("%w: %w", ErrInvalidLoanTerms, &ValidationError{Field: field, Message: message})
}

// FieldOf returns the field named by a wrapped ValidationError, or "".
func FieldOf(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Field
	}
	return ""
}

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrInvalidLoanTerms, "INVALID_LOAN_TERMS"},
	{ErrLoanClosed, "LOAN_CLOSED"},
	{ErrAlreadyExists, "ALREADY_EXISTS"},
	{ErrConflict, "CONFLICT"},
	{ErrInvalidPaymentAmount, "INVALID_PAYMENT_AMOUNT"},
	{ErrValidation, "VALIDATION_FAILED"},
	{ErrInvalidArgument, "INVALID_ARGUMENT"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrDatabase, "INTERNAL"},
	{ErrInternalServer, "INTERNAL"},
}

// Code returns a stable machine-readable code for err. The first matching
// sentinel in the chain wins; unknown errors are INTERNAL.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}
