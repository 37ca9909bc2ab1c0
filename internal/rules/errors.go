package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no rules or fee schedule exist
	// for the requested program and academic year.
	ErrNotFound = errors.New("rules: not found")
	// ErrInvalidConfiguration is the match target for configuration errors.
	ErrInvalidConfiguration = errors.New("rules: invalid configuration")
)

// ConfigurationError reports a structural validation failure in a
// grading rules or fee schedule document.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("rules: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

func configErr(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}
