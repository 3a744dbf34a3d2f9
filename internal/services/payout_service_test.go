package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/earnings-ledger/internal/events"
	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
)

// fundedSeller leaves 850 available in the seller wallet and a verified
// JazzCash account connected.
func fundedSeller(t *testing.T) *ledger {
	t.Helper()
	l := newLedger(t)
	l.paidSale(t, l.seller, "1000")
	l.matureAll(t)
	l.connectVerified(t, l.seller, models.PayoutMethodJazzCash, "03001234567")
	return l
}

func TestRequestPayoutDebitsAvailableBalance(t *testing.T) {
	l := fundedSeller(t)
	ctx := context.Background()

	payout, err := l.payouts.RequestPayout(ctx, l.seller.ID, PayoutRequest{
		Amount: dec("600"),
		Method: models.PayoutMethodJazzCash,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PayoutStatusPending, payout.Status)
	assert.Regexp(t, `^PO-[0-9A-Z]{26}$`, payout.Reference)
	assert.Equal(t, "03001234567", payout.Recipient["account_number"])
	assert.Equal(t, "PKR", payout.Currency)

	w := l.wallet(t, l.seller.ID)
	assert.True(t, dec("250").Equal(w.AvailableBalance))
	assert.True(t, dec("850").Equal(w.TotalEarnings), "total earnings never shrink")
	assert.Len(t, l.events.OfType(events.TypePayoutRequested), 1)
}

func TestRequestPayoutGuards(t *testing.T) {
	l := fundedSeller(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  PayoutRequest
		err  error
	}{
		{"below minimum", PayoutRequest{Amount: dec("499.99"), Method: models.PayoutMethodJazzCash}, ErrValidation},
		{"more than available", PayoutRequest{Amount: dec("850.01"), Method: models.PayoutMethodJazzCash}, ErrInsufficientBalance},
		{"method not connected", PayoutRequest{Amount: dec("500"), Method: models.PayoutMethodBank}, ErrInvalidState},
		{"sub-cent amount", PayoutRequest{Amount: dec("500.001"), Method: models.PayoutMethodJazzCash}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.payouts.RequestPayout(ctx, l.seller.ID, tt.req)
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, dec("850").Equal(l.wallet(t, l.seller.ID).AvailableBalance), "no partial debit")
		})
	}

	_, total, err := l.store.ListPayouts(ctx, store.PayoutFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRequestPayoutRequiresVerifiedMethod(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.paidSale(t, l.seller, "1000")
	l.matureAll(t)

	_, err := l.wallets.ConnectPayoutMethod(ctx, l.seller.ID, PayoutMethodRequest{
		Method:        models.PayoutMethodEasypaisa,
		AccountNumber: "03111234567",
		AccountTitle:  "Seller",
	})
	require.NoError(t, err)

	_, err = l.payouts.RequestPayout(ctx, l.seller.ID, PayoutRequest{Amount: dec("500"), Method: models.PayoutMethodEasypaisa})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRequestPayoutConcurrentRequestsNeverOverdraw(t *testing.T) {
	l := fundedSeller(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.payouts.RequestPayout(ctx, l.seller.ID, PayoutRequest{Amount: dec("500"), Method: models.PayoutMethodJazzCash})
			if err != nil {
				assert.ErrorIs(t, err, ErrInsufficientBalance)
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.True(t, dec("350").Equal(l.wallet(t, l.seller.ID).AvailableBalance))
}

func TestPayoutResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("approve then complete", func(t *testing.T) {
		l := fundedSeller(t)
		payout, err := l.payouts.RequestPayout(ctx, l.seller.ID, PayoutRequest{Amount: dec("500"), Method: models.PayoutMethodJazzCash})
		require.NoError(t, err)

		_, err = l.payouts.CompletePayout(ctx, payout.ID, l.platform.ID, PayoutResolution{})
		assert.ErrorIs(t, err, ErrInvalidState, "pending payouts must be approved first")

		approved, err := l.payouts.ApprovePayout(ctx, payout.ID, l.platform.ID, PayoutResolution{Notes: "checked"})
		require.NoError(t, err)
		assert.Equal(t, models.PayoutStatusApproved, approved.Status)

		done, err := l.payouts.CompletePayout(ctx, payout.ID, l.platform.ID, PayoutResolution{})
		require.NoError(t, err)
		assert.Equal(t, models.PayoutStatusCompleted, done.Status)
		require.NotNil(t, done.ResolvedBy)
		assert.Equal(t, l.platform.ID, *done.ResolvedBy)

		_, err = l.payouts.RejectPayout(ctx, payout.ID, l.platform.ID, PayoutResolution{})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.True(t, dec("350").Equal(l.wallet(t, l.seller.ID).AvailableBalance))
	})

	t.Run("reject restores balance", func(t *testing.T) {
		l := fundedSeller(t)
		payout, err := l.payouts.RequestPayout(ctx, l.seller.ID, PayoutRequest{Amount: dec("800"), Method: models.PayoutMethodJazzCash})
		require.NoError(t, err)
		assert.True(t, dec("50").Equal(l.wallet(t, l.seller.ID).AvailableBalance))

		rejected, err := l.payouts.RejectPayout(ctx, payout.ID, l.platform.ID, PayoutResolution{Notes: "account title mismatch"})
		require.NoError(t, err)
		assert.Equal(t, models.PayoutStatusRejected, rejected.Status)
		assert.True(t, dec("850").Equal(l.wallet(t, l.seller.ID).AvailableBalance))

		_, err = l.payouts.RejectPayout(ctx, payout.ID, l.platform.ID, PayoutResolution{})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.True(t, dec("850").Equal(l.wallet(t, l.seller.ID).AvailableBalance), "rejecting twice refunds once")
		assert.Len(t, l.events.OfType(events.TypePayoutResolved), 1)
	})

	t.Run("unknown payout", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.payouts.ApprovePayout(ctx, l.seller.ID, l.platform.ID, PayoutResolution{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListPayoutsFiltersByUser(t *testing.T) {
	l := fundedSeller(t)
	ctx := context.Background()

	_, err := l.payouts.RequestPayout(ctx, l.seller.ID, PayoutRequest{Amount: dec("500"), Method: models.PayoutMethodJazzCash})
	require.NoError(t, err)

	rows, total, err := l.payouts.ListPayouts(ctx, PayoutFilter{UserID: &l.seller.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, rows, 1)

	rows, total, err = l.payouts.ListPayouts(ctx, PayoutFilter{UserID: &l.platform.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)
}
