package services

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/earnings-ledger/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCommissionSplit(t *testing.T) {
	calc, err := NewCommissionCalculator(dec("15"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		amount     string
		sellerType models.SellerType
		seller     string
		platform   string
		percent    string
	}{
		{"admin seller 1000 PKR", "1000", models.SellerTypeAdmin, "850", "150", "15"},
		{"admin seller rounds platform share", "999.99", models.SellerTypeAdmin, "849.99", "150", "15"},
		{"admin seller small amount", "0.05", models.SellerTypeAdmin, "0.04", "0.01", "15"},
		{"admin seller zero", "0", models.SellerTypeAdmin, "0", "0", "15"},
		{"superadmin keeps everything", "1000", models.SellerTypeSuperadmin, "1000", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := calc.Split(dec(tt.amount), tt.sellerType)
			require.NoError(t, err)
			assert.True(t, split.SellerAmount.Equal(dec(tt.seller)), "seller %s", split.SellerAmount)
			assert.True(t, split.SuperadminAmount.Equal(dec(tt.platform)), "platform %s", split.SuperadminAmount)
			assert.True(t, split.Percentage.Equal(dec(tt.percent)))
			assert.True(t, split.Reconciles(dec(tt.amount)))
		})
	}
}

func TestCommissionSplitRejectsBadInput(t *testing.T) {
	calc, err := NewCommissionCalculator(dec("15"))
	require.NoError(t, err)

	_, err = calc.Split(dec("-1"), models.SellerTypeAdmin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = calc.Split(dec("10.005"), models.SellerTypeAdmin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = calc.Split(dec("10"), models.SellerType("reseller"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewCommissionCalculatorBounds(t *testing.T) {
	_, err := NewCommissionCalculator(dec("100.01"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewCommissionCalculator(dec("-0.5"))
	assert.ErrorIs(t, err, ErrValidation)

	for _, p := range []string{"0", "12.5", "100"} {
		_, err := NewCommissionCalculator(dec(p))
		assert.NoError(t, err, p)
	}
}

func TestCommissionSplitAlwaysReconciles(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		percent := decimal.New(rng.Int63n(10001), -2) // 0.00 .. 100.00
		calc, err := NewCommissionCalculator(percent)
		require.NoError(t, err)

		amount := decimal.New(rng.Int63n(10_000_000), -2)
		split, err := calc.Split(amount, models.SellerTypeAdmin)
		require.NoError(t, err)

		require.True(t, split.Reconciles(amount), "amount=%s pct=%s split=%+v", amount, percent, split)
		require.False(t, split.SellerAmount.IsNegative())
		require.False(t, split.SuperadminAmount.IsNegative())
		require.True(t, split.SuperadminAmount.Equal(split.SuperadminAmount.Round(2)))
	}
}
