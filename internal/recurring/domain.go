// Package recurring manages recurring services: flat monthly fee lines
// attached to an organization. Only active lines enter billing totals.
package recurring

import (
	"errors"
	"time"
)

// Service is one flat monthly fee line.
type Service struct {
	ID              int64
	OrganizationID  int64
	Name            string
	Description     string
	MonthlyFeeCents int64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ErrInvalidService rejects lines without an organization or name.
var ErrInvalidService = errors.New("recurring: invalid service")

// Validate checks structural validity before persistence.
func (s Service) Validate() error {
	if s.OrganizationID == 0 || s.Name == "" {
		return ErrInvalidService
	}
	if s.MonthlyFeeCents < 0 {
		return ErrInvalidService
	}
	return nil
}
