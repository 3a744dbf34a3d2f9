package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payoutForm struct {
	Amount decimal.Decimal `validate:"required,gt=0"`
	Method string          `validate:"required,payout_method"`
	Mobile string          `validate:"omitempty,pk_mobile"`
}

func TestValidateStructDecimalAndCustomTags(t *testing.T) {
	ok := payoutForm{Amount: decimal.RequireFromString("500"), Method: "jazzcash", Mobile: "0300-1234567"}
	assert.NoError(t, ValidateStruct(ok))

	bad := payoutForm{Amount: decimal.RequireFromString("-1"), Method: "paypal", Mobile: "12345"}
	err := ValidateStruct(bad)
	require.Error(t, err)

	tags := map[string]string{}
	for _, e := range GetValidationErrors(err) {
		tags[e.Field] = e.Tag
	}
	assert.Equal(t, "gt", tags["amount"])
	assert.Equal(t, "payout_method", tags["method"])
	assert.Equal(t, "pk_mobile", tags["mobile"])
}

func TestValidateStructZeroDecimalIsRequired(t *testing.T) {
	err := ValidateStruct(payoutForm{Method: "bank"})
	require.Error(t, err)
	assert.Equal(t, "required", GetValidationErrors(err)[0].Tag)
}
