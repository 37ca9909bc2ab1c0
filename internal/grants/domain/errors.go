package grants

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a grant is missing.
	ErrNotFound = errors.New("grants: not found")
	// ErrNilAggregate is returned when saving a nil grant.
	ErrNilAggregate = errors.New("grants: nil aggregate")
	// ErrPolicyViolation is the match target for policy violations.
	ErrPolicyViolation = errors.New("grants: policy violation")
)

// PolicyViolationError reports a recoverable business-policy rejection:
// a transition out of a terminal state, a non-positive amount, or a
// separation-of-duties breach. The grant is left untouched.
type PolicyViolationError struct {
	Rule   string
	Detail string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("grants: policy violation: %s: %s", e.Rule, e.Detail)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

func violation(rule, format string, args ...any) error {
	return &PolicyViolationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}
