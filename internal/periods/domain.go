// Package periods implements the accounting period guard: the lock/unlock
// state per (month, year) and the predicate every mutating write path
// must pass.
package periods

import (
	"errors"
	"time"
)

// Period is one accounting period. Periods are unlocked by default and
// created implicitly on first lock.
type Period struct {
	ID        int64
	Month     int
	Year      int
	LockedAt  *time.Time
	LockedBy  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the period currently rejects mutating writes.
func (p Period) Locked() bool {
	return p.LockedAt != nil
}

// ErrInvalidPeriod indicates an out-of-range month or year.
var ErrInvalidPeriod = errors.New("periods: invalid month/year")

// ValidatePeriod checks the (month, year) pair.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return ErrInvalidPeriod
	}
	if year < 2000 || year > 2200 {
		return ErrInvalidPeriod
	}
	return nil
}
