package services

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/payments"
	"github.com/javajoker/earnings-ledger/internal/store"
	"github.com/javajoker/earnings-ledger/internal/utils"
)

func TestInitiateCheckoutCreatesPendingRecords(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	res := l.startCheckout(t, l.seller, "1000")
	assert.NotEmpty(t, res.Tracker)
	assert.Regexp(t, `^ORD-[0-9A-Z]{26}$`, res.OrderID)
	assert.Contains(t, res.RedirectURL, res.Tracker)
	assert.True(t, dec("850").Equal(res.Commission.SellerAmount))
	assert.True(t, dec("150").Equal(res.Commission.SuperadminAmount))

	payment, err := l.store.FindPayment(ctx, store.PaymentLookup{Tracker: res.Tracker})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, models.SellerTypeAdmin, payment.SellerType)
	assert.Equal(t, "fake", payment.Gateway)

	purchase, err := l.store.FindPurchaseByPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, purchase.PaymentStatus)
	assert.True(t, l.wallet(t, l.seller.ID).TotalEarnings.IsZero(), "checkout never touches wallets")
}

func TestInitiateCheckoutPlatformSeller(t *testing.T) {
	l := newLedger(t)

	res := l.startCheckout(t, l.platform, "1000")
	assert.True(t, dec("1000").Equal(res.Commission.SellerAmount))
	assert.True(t, res.Commission.SuperadminAmount.IsZero())
}

func TestInitiateCheckoutRejections(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	// own the item first
	co := l.startCheckout(t, l.seller, "500")
	l.gateway.set(co.Tracker, payments.StatusPaid)
	res, err := l.completion.CompletePurchase(ctx, CompletionRequest{Source: models.CompletionSourceReturnURL, Tracker: co.Tracker})
	require.NoError(t, err)

	owned := CheckoutRequest{
		ItemID:   res.Purchase.ItemID,
		ItemType: models.ItemTypeBook,
		Format:   models.ItemFormatPDF,
		Price:    dec("500"),
		SellerID: l.seller.ID,
	}
	_, err = l.checkout.InitiateCheckout(ctx, l.buyer.ID, owned)
	assert.ErrorIs(t, err, ErrConflict)

	// the other format is still for sale
	other := owned
	other.Format = models.ItemFormatText
	_, err = l.checkout.InitiateCheckout(ctx, l.buyer.ID, other)
	assert.NoError(t, err)

	unknown := owned
	unknown.ItemID = uuid.New()
	unknown.SellerID = uuid.New()
	_, err = l.checkout.InitiateCheckout(ctx, l.buyer.ID, unknown)
	assert.ErrorIs(t, err, ErrValidation)

	buyerSeller := unknown
	buyerSeller.SellerID = l.buyer.ID
	_, err = l.checkout.InitiateCheckout(ctx, l.buyer.ID, buyerSeller)
	assert.ErrorIs(t, err, ErrValidation)

	l.gateway.checkoutErr = errors.New("merchant disabled")
	gatewayDown := unknown
	gatewayDown.SellerID = l.seller.ID
	_, err = l.checkout.InitiateCheckout(ctx, l.buyer.ID, gatewayDown)
	assert.ErrorIs(t, err, ErrGatewayVerification)
}

func TestInitiateCheckoutReusesOpenCheckout(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	req := CheckoutRequest{
		ItemID:   uuid.New(),
		ItemType: models.ItemTypeJudgment,
		Format:   models.ItemFormatText,
		Price:    dec("1000"),
		SellerID: l.seller.ID,
	}
	first, err := l.checkout.InitiateCheckout(ctx, l.buyer.ID, req)
	require.NoError(t, err)
	assert.False(t, first.Reused)

	again, err := l.checkout.InitiateCheckout(ctx, l.buyer.ID, req)
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, first.PaymentID, again.PaymentID)
	assert.Equal(t, first.Tracker, again.Tracker)
	assert.Equal(t, first.RedirectURL, again.RedirectURL)
	assert.Equal(t, 1, l.gateway.seq, "no second gateway session")

	// a changed price is a different sale
	req.Price = dec("900")
	repriced, err := l.checkout.InitiateCheckout(ctx, l.buyer.ID, req)
	require.NoError(t, err)
	assert.False(t, repriced.Reused)
	assert.NotEqual(t, first.PaymentID, repriced.PaymentID)

	// stale checkouts are not handed out again
	l.checkout.clock = func() time.Time { return time.Now().Add(checkoutReuseWindow + time.Minute) }
	req.Price = dec("1000")
	fresh, err := l.checkout.InitiateCheckout(ctx, l.buyer.ID, req)
	require.NoError(t, err)
	assert.False(t, fresh.Reused)
}

func TestInitiateCheckoutVerifiesSignedSnapshot(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.checkout.opts.SigningSecret = "storefront-secret"

	req := CheckoutRequest{
		ItemID:   uuid.New(),
		ItemType: models.ItemTypeBook,
		Format:   models.ItemFormatPDF,
		Price:    dec("1000"),
		SellerID: l.seller.ID,
	}

	_, err := l.checkout.InitiateCheckout(ctx, l.buyer.ID, req)
	assert.ErrorIs(t, err, ErrValidation, "unsigned")

	req.Signature = hex.EncodeToString(utils.HMACSHA256("storefront-secret", req.SigningPayload()))
	tampered := req
	tampered.Price = dec("1")
	_, err = l.checkout.InitiateCheckout(ctx, l.buyer.ID, tampered)
	assert.ErrorIs(t, err, ErrValidation, "price changed after signing")

	res, err := l.checkout.InitiateCheckout(ctx, l.buyer.ID, req)
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(res.Amount))
}

func TestCheckoutSigningPayload(t *testing.T) {
	item := uuid.MustParse("6f1c2b9e-3a57-4d0e-9a51-0b7b1f0c2d11")
	seller := uuid.MustParse("0c9a1d3e-7f2b-4c61-8e0a-5d4b3a2c1f00")
	req := CheckoutRequest{ItemID: item, ItemType: models.ItemTypeBook, Format: models.ItemFormatPDF, Price: dec("1500.5"), SellerID: seller}

	assert.Equal(t,
		"6f1c2b9e-3a57-4d0e-9a51-0b7b1f0c2d11|book|pdf|1500.50|0c9a1d3e-7f2b-4c61-8e0a-5d4b3a2c1f00",
		string(req.SigningPayload()))
}
