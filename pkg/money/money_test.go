package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10.00"},
		{"0.125", "0.13"},
		{"99.999", "100.00"},
		{"250", "250.00"},
	}

	for _, tc := range cases {
		got := Round(decimal.RequireFromString(tc.in))
		require.Equal(t, tc.want, got.StringFixed(2), "round(%s)", tc.in)
	}
}

func TestGMVCommission(t *testing.T) {
	gmv := decimal.RequireFromString("12345.67")
	rate := decimal.RequireFromString("7.5")

	want := Round(gmv.Mul(rate).Div(decimal.NewFromInt(100)))
	require.True(t, GMVCommission(gmv, rate).Equal(want))
}

func TestGMVCommissionNonPositiveInputs(t *testing.T) {
	rate := decimal.NewFromInt(10)

	require.True(t, GMVCommission(decimal.Zero, rate).IsZero())
	require.True(t, GMVCommission(decimal.NewFromInt(-100), rate).IsZero())
	require.True(t, GMVCommission(decimal.NewFromInt(100), decimal.Zero).IsZero())
	require.True(t, GMVCommission(decimal.NewFromInt(100), decimal.NewFromInt(-5)).IsZero())
}
