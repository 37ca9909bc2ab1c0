package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a student financial aggregate is missing.
	ErrNotFound = errors.New("billing: not found")
	// ErrNegativeAmount is returned when a negative amount is provided.
	ErrNegativeAmount = errors.New("billing: negative amount")
	// ErrNonPositiveAmount is returned when a payment is zero or negative.
	ErrNonPositiveAmount = errors.New("billing: amount must be positive")
	// ErrNilAggregate is returned when saving a nil aggregate.
	ErrNilAggregate = errors.New("billing: nil aggregate")
	// ErrInvoiceNotOpen is returned when paying a cancelled or paid invoice.
	ErrInvoiceNotOpen = errors.New("billing: invoice not open")
	// ErrPolicyViolation is the match target for policy violations.
	ErrPolicyViolation = errors.New("billing: policy violation")
)

// PolicyViolationError reports a business-policy rejection, such as a
// registration attempted while the student is financially blocked.
type PolicyViolationError struct {
	Rule   string
	Detail string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("billing: policy violation: %s: %s", e.Rule, e.Detail)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }
