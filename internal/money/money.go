// Package money implements integer-cents arithmetic shared by every
// billing component. Amounts at rest are always int64 cents; decimals
// exist only as derived display values.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultVATRate is the VAT percentage applied when a caller does not
// specify one.
var DefaultVATRate = decimal.NewFromInt(21)

var centsFactor = decimal.NewFromInt(100)

var half = decimal.New(5, -1)

// Normalize parses a localized numeric string (comma or dot decimal
// separator, optional thousands separators including non-breaking
// spaces) into a decimal. The boolean is false for unparseable input.
func Normalize(value string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Decimal{}, false
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, s)

	comma := strings.LastIndexByte(s, ',')
	dot := strings.LastIndexByte(s, '.')
	switch {
	case comma >= 0 && dot >= 0:
		// The rightmost separator is the decimal one, the other is a
		// thousands separator.
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ToCents converts a localized amount string into integer cents.
// It fails closed: the boolean is false for anything unparseable, and
// callers must treat that as "unset", not zero.
func ToCents(value string) (int64, bool) {
	d, ok := Normalize(value)
	if !ok {
		return 0, false
	}
	return DecimalToCents(d), true
}

// DecimalToCents converts a major-unit decimal into cents, rounding
// half up on the cents boundary.
func DecimalToCents(d decimal.Decimal) int64 {
	return roundHalfUp(d.Mul(centsFactor))
}

// FromCents derives the display amount in major units. The result is a
// lossy presentation value; arithmetic stays in cents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsFactor)
}

// FromCentsPtr is FromCents for nullable amounts.
func FromCentsPtr(cents *int64) *decimal.Decimal {
	if cents == nil {
		return nil
	}
	d := FromCents(*cents)
	return &d
}

// VAT computes the VAT amount in cents as round-half-up of
// totalCents * rate. A nil rate falls back to DefaultVATRate.
func VAT(totalCents int64, ratePercent *decimal.Decimal) int64 {
	rate := DefaultVATRate
	if ratePercent != nil {
		rate = *ratePercent
	}
	return roundHalfUp(decimal.NewFromInt(totalCents).Mul(rate).Div(centsFactor))
}

// WithVAT returns totalCents + VAT(totalCents). The inclusive total is
// always derived from the VAT figure, never rounded independently, so
// subtotal + VAT reconciles exactly.
func WithVAT(totalCents int64, ratePercent *decimal.Decimal) int64 {
	return totalCents + VAT(totalCents, ratePercent)
}

// RoundCents rounds a fractional cents value half up to whole cents.
func RoundCents(d decimal.Decimal) int64 {
	return roundHalfUp(d)
}

func roundHalfUp(d decimal.Decimal) int64 {
	return d.Add(half).Floor().IntPart()
}
