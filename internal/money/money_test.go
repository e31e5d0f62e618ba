package money

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"100", 10000, true},
		{"100.50", 10050, true},
		{"100,50", 10050, true},
		{"1 000,00", 100000, true},
		{"1 234,56", 123456, true},
		{"1.234,56", 123456, true},
		{"1,234.56", 123456, true},
		{"0", 0, true},
		{"-12,30", -1230, true},
		{"  42 ", 4200, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12,3x", 0, false},
	}
	for _, tc := range cases {
		got, ok := ToCents(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			require.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	// Every amount representable to two decimal places must survive
	// ToCents -> FromCents unchanged.
	for cents := int64(-250); cents <= 250; cents++ {
		display := FromCents(cents)
		back, ok := ToCents(display.StringFixed(2))
		require.True(t, ok)
		require.Equal(t, cents, back)
	}
}

func TestVATRoundHalfUp(t *testing.T) {
	rate := decimal.NewFromInt(21)
	cases := []struct {
		total int64
		want  int64
	}{
		{10000, 2100},
		{100, 21},
		{10, 2},   // 2.1 -> 2
		{50, 11},  // 10.5 -> 11
		{7, 1},    // 1.47 -> 1
		{12, 3},   // 2.52 -> 3
		{0, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, VAT(tc.total, &rate), "total %d", tc.total)
	}
}

func TestVATDefaultsTo21Percent(t *testing.T) {
	require.Equal(t, int64(2100), VAT(10000, nil))
}

func TestWithVATNeverDrifts(t *testing.T) {
	// Inclusive total must equal subtotal + VAT for any subtotal and any
	// whole-percent rate in [0,100].
	for rate := int64(0); rate <= 100; rate++ {
		r := decimal.NewFromInt(rate)
		for _, total := range []int64{0, 1, 7, 99, 12100, 999999, 123456789} {
			vat := VAT(total, &r)
			require.Equal(t, total+vat, WithVAT(total, &r),
				fmt.Sprintf("total=%d rate=%d", total, rate))
		}
	}
}

func TestFromCentsPtr(t *testing.T) {
	require.Nil(t, FromCentsPtr(nil))
	v := int64(12345)
	require.Equal(t, "123.45", FromCentsPtr(&v).StringFixed(2))
}
