package academic

import "errors"

var (
	// ErrNotFound is returned when a grade ledger or result is missing.
	ErrNotFound = errors.New("academic: not found")
	// ErrNilAggregate is returned when saving a nil aggregate.
	ErrNilAggregate = errors.New("academic: nil aggregate")
	// ErrEmptyUnitCode is returned when a teaching unit code is blank.
	ErrEmptyUnitCode = errors.New("academic: empty unit code")
	// ErrScoreOutOfRange is returned for scores below zero or above the scale.
	ErrScoreOutOfRange = errors.New("academic: score out of range")
	// ErrUnitNotCovered is returned when a teacher writes outside their units.
	ErrUnitNotCovered = errors.New("academic: teaching unit not covered by actor scope")
)
