package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCommissionConvertsToRUB(t *testing.T) {
	half := decimal.RequireFromString("0.5")
	cases := []struct {
		name     string
		amount   string
		currency string
		rub      string
		want     string
	}{
		{"rub", "300", "RUB", "300", "150"},
		{"sbp", "1000", "RUB_SBP", "1000", "500"},
		{"kzt", "32500", "KZT", "6825", "3412.50"},
		{"uzs", "86000", "UZS", "645", "322.50"},
		{"crypto", "3.00", "CRYPTO", "285", "142.50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)

			rub, err := ToRUB(amount, tc.currency)
			require.NoError(t, err)
			require.True(t, decimal.RequireFromString(tc.rub).Equal(rub), rub.String())

			got, err := Commission(amount, tc.currency, half)
			require.NoError(t, err)
			require.True(t, decimal.RequireFromString(tc.want).Equal(got), got.String())
		})
	}
}

func TestCommissionUnknownCurrency(t *testing.T) {
	_, err := ToRUB(decimal.NewFromInt(10), "EUR")
	require.ErrorIs(t, err, ErrUnsupportedCurrency)

	got, err := Commission(decimal.NewFromInt(10), "EUR", decimal.RequireFromString("0.5"))
	require.ErrorIs(t, err, ErrUnsupportedCurrency)
	require.True(t, got.IsZero())
}
