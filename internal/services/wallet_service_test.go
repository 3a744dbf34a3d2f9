package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/earnings-ledger/internal/models"
)

func TestConnectPayoutMethodValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     PayoutMethodRequest
		wantErr bool
	}{
		{"jazzcash", PayoutMethodRequest{Method: models.PayoutMethodJazzCash, AccountNumber: "0300 1234567", AccountTitle: "Ali"}, false},
		{"easypaisa with dashes", PayoutMethodRequest{Method: models.PayoutMethodEasypaisa, AccountNumber: "0345-1234567", AccountTitle: "Ali"}, false},
		{"mobile too short", PayoutMethodRequest{Method: models.PayoutMethodJazzCash, AccountNumber: "030012345", AccountTitle: "Ali"}, true},
		{"mobile wrong prefix", PayoutMethodRequest{Method: models.PayoutMethodJazzCash, AccountNumber: "04001234567", AccountTitle: "Ali"}, true},
		{"bank", PayoutMethodRequest{Method: models.PayoutMethodBank, AccountNumber: "0123456789012", AccountTitle: "Ali", BankName: "HBL"}, false},
		{"bank with iban", PayoutMethodRequest{Method: models.PayoutMethodBank, AccountNumber: "0123456789012", AccountTitle: "Ali", BankName: "HBL", IBAN: "pk36 scbl 0000 0011 2345 6702"}, false},
		{"bank bad iban", PayoutMethodRequest{Method: models.PayoutMethodBank, AccountNumber: "0123456789012", AccountTitle: "Ali", BankName: "HBL", IBAN: "GB29NWBK60161331926819"}, true},
		{"bank without name", PayoutMethodRequest{Method: models.PayoutMethodBank, AccountNumber: "0123456789012", AccountTitle: "Ali"}, true},
		{"bank short number", PayoutMethodRequest{Method: models.PayoutMethodBank, AccountNumber: "1234567", AccountTitle: "Ali", BankName: "HBL"}, true},
		{"missing title", PayoutMethodRequest{Method: models.PayoutMethodJazzCash, AccountNumber: "03001234567"}, true},
		{"unknown method", PayoutMethodRequest{Method: "paypal", AccountNumber: "03001234567", AccountTitle: "Ali"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizePayoutMethod(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConnectPayoutMethodNormalizes(t *testing.T) {
	out, err := normalizePayoutMethod(PayoutMethodRequest{
		Method:        models.PayoutMethodBank,
		AccountNumber: " 0123-4567-8901 ",
		AccountTitle:  " Ali Raza ",
		BankName:      "Meezan",
		IBAN:          "pk36 scbl 0000 0011 2345 6702",
	})
	require.NoError(t, err)
	assert.Equal(t, "012345678901", out.AccountNumber)
	assert.Equal(t, "Ali Raza", out.AccountTitle)
	assert.Equal(t, "PK36SCBL0000001123456702", out.IBAN)
}

func TestConnectPayoutMethodOwnership(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	other := l.createUser(t, ctx, "other-seller", models.UserRoleAdmin)

	req := PayoutMethodRequest{Method: models.PayoutMethodJazzCash, AccountNumber: "03001234567", AccountTitle: "Seller"}
	account, err := l.wallets.ConnectPayoutMethod(ctx, l.seller.ID, req)
	require.NoError(t, err)
	assert.False(t, account.Verified)

	_, err = l.wallets.ConnectPayoutMethod(ctx, other.ID, req)
	assert.ErrorIs(t, err, ErrConflict)

	// reconnecting the same number keeps the row and its verification
	verified, err := l.wallets.VerifyPayoutMethod(ctx, account.ID, l.platform.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	again, err := l.wallets.ConnectPayoutMethod(ctx, l.seller.ID, req)
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)
	assert.True(t, again.Verified)

	req.AccountNumber = "03009999999"
	changed, err := l.wallets.ConnectPayoutMethod(ctx, l.seller.ID, req)
	require.NoError(t, err)
	assert.Equal(t, account.ID, changed.ID)
	assert.False(t, changed.Verified, "a new number needs a new verification")
}

func TestConnectPayoutMethodPlatformAutoVerified(t *testing.T) {
	l := newLedger(t)

	account, err := l.wallets.ConnectPayoutMethod(context.Background(), l.platform.ID, PayoutMethodRequest{
		Method:        models.PayoutMethodBank,
		AccountNumber: "00112233445566",
		AccountTitle:  "Platform",
		BankName:      "HBL",
	})
	require.NoError(t, err)
	assert.True(t, account.Verified)
	require.NotNil(t, account.VerifiedAt)
}

func TestGetWalletSnapshot(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	empty, err := l.wallets.GetWallet(ctx, l.buyer.ID)
	require.NoError(t, err)
	assert.True(t, empty.Wallet.TotalEarnings.IsZero())
	assert.NotNil(t, empty.PayoutMethods)
	assert.NotNil(t, empty.RecentPayouts)

	l.paidSale(t, l.seller, "1000")
	l.connectVerified(t, l.seller, models.PayoutMethodJazzCash, "03001234567")

	snap, err := l.wallets.GetWallet(ctx, l.seller.ID)
	require.NoError(t, err)
	assert.True(t, dec("850").Equal(snap.Wallet.PendingBalance))
	assert.True(t, dec("500").Equal(snap.MinimumPayout))
	assert.Len(t, snap.PayoutMethods, 1)
	require.Len(t, snap.UpcomingMaturations, 1)
	assert.True(t, dec("850").Equal(snap.UpcomingMaturations[0].Amount))
	assert.Len(t, snap.RecentCommissions, 1)

	_, err = l.wallets.GetWallet(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
