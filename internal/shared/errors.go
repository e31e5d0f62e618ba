package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyAssigned indicates a line item already backs an inventory item.
	ErrAlreadyAssigned = errors.New("line item already assigned")
	// ErrDuplicateDocument indicates an ingested document digest already exists.
	// Callers treat it as success and return the existing record.
	ErrDuplicateDocument = errors.New("duplicate document")
	// ErrPeriodLocked indicates a mutating write against a locked accounting
	// period. It is user-actionable: the period must be unlocked first.
	ErrPeriodLocked = errors.New("accounting period locked")
)

// PeriodLockedError carries the locked period so callers can report which
// month rejected the write. It matches ErrPeriodLocked under errors.Is.
type PeriodLockedError struct {
	Month int
	Year  int
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("accounting period %02d/%d locked", e.Month, e.Year)
}

func (e *PeriodLockedError) Is(target error) bool {
	return target == ErrPeriodLocked
}
