// internal/services/commission_calculator.go
package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/javajoker/earnings-ledger/internal/models"
)

var hundred = decimal.NewFromInt(100)

// CommissionCalculator splits a gross amount between seller and platform.
type CommissionCalculator struct {
	percent decimal.Decimal
}

func NewCommissionCalculator(percent decimal.Decimal) (*CommissionCalculator, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: commission percentage %s outside [0,100]", ErrValidation, percent)
	}
	return &CommissionCalculator{percent: percent}, nil
}

func (c *CommissionCalculator) Percent() decimal.Decimal {
	return c.percent
}

// Split rounds the platform share half away from zero to the cent and gives
// the seller the remainder, so the two always add back to amount.
func (c *CommissionCalculator) Split(amount decimal.Decimal, sellerType models.SellerType) (models.Split, error) {
	if amount.IsNegative() {
		return models.Split{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if !amount.Equal(amount.Round(2)) {
		return models.Split{}, fmt.Errorf("%w: amount %s has more than two decimal places", ErrValidation, amount)
	}

	switch sellerType {
	case models.SellerTypeSuperadmin:
		return models.Split{
			SellerAmount:     amount,
			SuperadminAmount: decimal.Zero,
			Percentage:       decimal.Zero,
		}, nil
	case models.SellerTypeAdmin:
		platform := amount.Mul(c.percent).Div(hundred).Round(2)
		return models.Split{
			SellerAmount:     amount.Sub(platform),
			SuperadminAmount: platform,
			Percentage:       c.percent,
		}, nil
	default:
		return models.Split{}, fmt.Errorf("%w: unknown seller type %q", ErrValidation, sellerType)
	}
}
